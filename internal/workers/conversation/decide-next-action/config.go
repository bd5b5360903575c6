// internal/workers/conversation/decide-next-action/config.go
package decidenextaction

type Config struct {
	Region string
}

func LoadConfig() *Config {
	return &Config{
		Region: "PH",
	}
}
