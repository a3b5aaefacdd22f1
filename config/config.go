package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type Log struct {
	Level string
}

type Listener struct {
	Address    string
	ReadBuffer int
	// Layout is "dash" or "horizon".
	Layout    string
	DropStale bool
}

// UDP relays re-encoded packets to another host.
type UDP struct {
	Server     string
	Port       int
	IntervalMS int
}

type Redis struct {
	Address    string
	Password   string
	DB         int
	Key        string
	Channel    string
	IntervalMS int
}

type MQTT struct {
	Broker     string
	Topic      string
	ClientID   string
	QoS        byte
	IntervalMS int
}

type CAN struct {
	Interface  string
	IntervalMS int
}

type Web struct {
	Address    string
	IntervalMS int
}

type Config struct {
	Log      Log
	Listener Listener
	UDP      UDP
	Redis    Redis
	MQTT     MQTT
	CAN      CAN
	Web      Web
}

func Default() *Config {
	return &Config{
		Log: Log{
			Level: "info",
		},
		Listener: Listener{
			Address:    "127.0.0.1:6969",
			ReadBuffer: 64 * 1024,
			Layout:     "dash",
		},
		UDP: UDP{
			IntervalMS: 100,
		},
		Redis: Redis{
			Key:        "forza:telemetry",
			Channel:    "forza:telemetry",
			IntervalMS: 100,
		},
		MQTT: MQTT{
			Topic:      "forza/telemetry",
			IntervalMS: 100,
		},
		CAN: CAN{
			IntervalMS: 50,
		},
		Web: Web{
			IntervalMS: 50,
		},
	}
}

// Load reads fileName, relative names being resolved next to the binary.
func Load(fileName string) (*Config, error) {
	path := fileName
	if !filepath.IsAbs(path) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		path = filepath.Join(dir, fileName)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadFromReader(file)
}

func LoadFromReader(configReader io.Reader) (*Config, error) {
	config := Default()
	if _, err := toml.NewDecoder(configReader).Decode(config); err != nil {
		return nil, errors.Wrapf(err, "unable to load configuration")
	}
	return config, nil
}

func Interval(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
