package core

import (
	"os"

	"github.com/go-yaml/yaml"
)

// Config is the service base configuration
type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
}

type Server struct {
	Dsn           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	Bind          string `yaml:"bind"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Auth struct {
	Secret        string `yaml:"secret"`
	Issuer        string `yaml:"issuer"`
	ExpireMinutes int    `yaml:"expireMinutes"`
}

// Load loads config from given path
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = yaml.NewDecoder(f).Decode(&c)
	if err != nil {
		return err
	}

	if c.Server.Bind == "" {
		c.Server.Bind = ":8000"
	}
	if c.Auth.ExpireMinutes == 0 {
		c.Auth.ExpireMinutes = 60
	}

	return nil
}
