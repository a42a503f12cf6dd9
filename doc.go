// Package gateway and its sub-packages implement a stateless HTTP gateway in front of a Hyperledger Fabric network.
/*
The gateway answers ledger queries over a RESTful API and streams live events to websocket clients.

Architecture

A request is decoded into the parameter set of its route, validated and forwarded to the ledger query facade (package
lib/ledger). The facade result is replied verbatim. The only composite operation is the config block lookup: the block
given by the client is fetched, the config block pointer is read from its metadata and the config block is fetched and
replied.

The Fabric implementation of the facade (package lib/ledger/fabric) uses the Fabric SDK for Go with the connection
profile given in the configuration. Ledger queries are rate limited.

The notification bus (package lib/notify) is a websocket hub mounted at /ws/events. The block explorer feed (package
explorer) publishes an event for every block committed on the configured channels, and lab creations are announced
too. Events can also be forwarded to a message broker (packages lib/msg/...): an AMQP topic exchange or a Kafka topic.

Gateway

The gateway service (package gateway) can be started running cmd/gateway/main.go. Configuration is read from a JSON,
YAML or TOML file given with "-c" and can be overridden with GW_ prefixed environment variables (package lib/config).
The service can also be monitored via a Prometheus API by setting the flag "-m" at startup.

*/
package gateway
