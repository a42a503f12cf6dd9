// config_test.go tests config files
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileToTest is a relative path to the configuration file to test (ie. gateway/cmd/gateway/conf.json)
var fileToTest string = "../../cmd/gateway/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	conf, err := ExtractConfiguration(fileToTest)
	require.NoError(t, err)

	assert.Equal(t, "4001", conf.Port)
	assert.Equal(t, "info", conf.LogLevel)
	assert.Equal(t, []string{"mychannel"}, conf.Fabric.Channels)
	assert.Equal(t, "lab", conf.Fabric.LabChaincode)
	assert.Equal(t, 10, conf.Fabric.RateBlocks)
	assert.NoError(t, conf.Validate())
}

func TestConfigYAML(t *testing.T) {
	dir, err := ioutil.TempDir("", "gwconf")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "conf.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte("port: \"8080\"\nloglevel: debug\nfabric:\n  org: Org2\n"), 0600))

	conf, err := ExtractConfiguration(file)
	require.NoError(t, err)

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "Org2", conf.Fabric.Org)
	// untouched keys keep their defaults
	assert.Equal(t, UserDefault, conf.Fabric.User)
	assert.Equal(t, HostDefault, conf.Host)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("GW_PORT", "5005")
	t.Setenv("GW_MBTYPE", "kafka")
	t.Setenv("GW_FABRIC_CHANNELS", "a,b")

	conf, err := ExtractConfiguration(fileToTest)
	require.NoError(t, err)

	assert.Equal(t, "5005", conf.Port)
	assert.Equal(t, "kafka", conf.MbType)
	assert.Equal(t, []string{"a", "b"}, conf.Fabric.Channels)
}

func TestConfigMissingFile(t *testing.T) {
	conf, err := ExtractConfiguration("does-not-exist.json")
	assert.Error(t, err)
	// defaults are still returned
	assert.Equal(t, PortDefault, conf.Port)
}

func TestValidate(t *testing.T) {
	base, err := ExtractConfiguration("")
	require.NoError(t, err)
	require.NoError(t, base.Validate())

	cases := []struct {
		name string
		mod  func(c *ServiceConfig)
		err  error
	}{
		{"port", func(c *ServiceConfig) { c.Port = "http" }, ErrBadPort},
		{"sslport", func(c *ServiceConfig) { c.SSLPort = "70000" }, ErrBadPort},
		{"broker", func(c *ServiceConfig) { c.MbType = "nats" }, ErrBadBroker},
		{"amqp", func(c *ServiceConfig) { c.MbType = "amqp" }, nil},
	}

	for _, c := range cases {
		conf := base
		c.mod(&conf)

		err := conf.Validate()
		if c.err == nil {
			assert.NoError(t, err, c.name)
		} else {
			assert.True(t, errors.Is(err, c.err), "[%s] got %v", c.name, err)
		}
	}

	conf := base
	conf.LogLevel = "chatty"
	assert.Error(t, conf.Validate())
}

func TestWatch(t *testing.T) {
	dir, err := ioutil.TempDir("", "gwwatch")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "conf.json")
	require.NoError(t, ioutil.WriteFile(file, []byte(`{"loglevel":"info"}`), 0600))

	levels := make(chan string, 10)
	require.NoError(t, Watch(file, func(c ServiceConfig) { levels <- c.LogLevel }))

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, ioutil.WriteFile(file, []byte(`{"loglevel":"debug"}`), 0600))

	timeout := time.After(5 * time.Second)

	for {
		select {
		case lvl := <-levels:
			if lvl == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("configuration change not reported")
		}
	}
}
