package cfg

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type MirrorType string

const (
	NONE    MirrorType = ""
	MBOX    MirrorType = "mbox"
	MAILDIR MirrorType = "maildir"
)

type Config struct {
	SMTP   SMTP   `yaml:"smtp"`
	IMAP   IMAP   `yaml:"imap"`
	HTTP   HTTP   `yaml:"http"`
	Mirror Mirror `yaml:"mirror"`
}

type SMTP struct {
	Listen string `yaml:"listen"`
	Domain string `yaml:"domain"`
	// MaxMessageSize in bytes, 0 means no limit
	MaxMessageSize int64 `yaml:"maxMessageSize"`
	// BandwidthLimit in bytes per second applied to message data, 0 means
	// no limit. Useful to simulate a slow server against client timeouts.
	BandwidthLimit float64 `yaml:"bandwidthLimit"`
}

type IMAP struct {
	Listen string `yaml:"listen"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

type Mirror struct {
	Type MirrorType `yaml:"type"`
	// File receiving the mbox copy (type = mbox)
	File string `yaml:"file"`
	// Root of the maildir copy (type = maildir)
	Root string `yaml:"root"`
}

// Default returns the configuration used when no file is given: the three
// listeners on their historical localmail ports, no mirror.
func Default() *Config {
	return &Config{
		SMTP: SMTP{
			Listen: "localhost:2025",
			Domain: "localhost",
		},
		IMAP: IMAP{
			Listen: "localhost:2143",
		},
		HTTP: HTTP{
			Listen: "localhost:8880",
		},
	}
}

// LoadFromFile loads the configuration from the file
func LoadFromFile(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	return loadConfig(file)
}

// loadConfig from a io.ReadCloser
func loadConfig(reader io.ReadCloser) (*Config, error) {
	defer reader.Close()
	decoder := yaml.NewDecoder(reader)
	config := Default()
	err := decoder.Decode(config)
	if err != nil {
		return nil, err
	}
	if err = validateConfiguration(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfiguration(config *Config) error {
	switch config.Mirror.Type {
	case NONE, MBOX, MAILDIR:
	default:
		return fmt.Errorf("unsupported mirror type %q", config.Mirror.Type)
	}
	if config.Mirror.Type == MBOX && config.Mirror.File == "" {
		return fmt.Errorf("mirror type %q needs a file", MBOX)
	}
	if config.Mirror.Type == MAILDIR && config.Mirror.Root == "" {
		return fmt.Errorf("mirror type %q needs a root directory", MAILDIR)
	}
	return nil
}
