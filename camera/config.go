package camera

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the full configuration file
type Config struct {
	MQTT       MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	HTTP       HTTPConfig     `yaml:"http" json:"http"`
	StorageDir string         `yaml:"storageDir" json:"storageDir"`
	Vacuums    []VacuumConfig `yaml:"vacuums" json:"vacuums"`
	Trim       TrimConfig     `yaml:"trim" json:"trim"`
	Snapshots  SnapshotConfig `yaml:"snapshots" json:"snapshots"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds the HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// VacuumConfig maps one vacuum's MQTT topic to a floor id
type VacuumConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
	Floor string `yaml:"floor,omitempty" json:"floor,omitempty"`
}

// TrimConfig holds the default trim parameters seeded into new floors
type TrimConfig struct {
	Margin              int     `yaml:"margin" json:"margin"`
	Rotation            int     `yaml:"rotation" json:"rotation"`
	AspectRatio         string  `yaml:"aspectRatio,omitempty" json:"aspectRatio,omitempty"`
	Offsets             Margins `yaml:"offsets,omitempty" json:"offsets,omitempty"`
	Background          string  `yaml:"background,omitempty" json:"background,omitempty"`
	BackgroundTolerance uint8   `yaml:"backgroundTolerance,omitempty" json:"backgroundTolerance,omitempty"`
	AutoZoom            bool    `yaml:"autoZoom" json:"autoZoom"`
}

// SnapshotConfig controls the docked-snapshot lifecycle
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoadConfig loads the unified configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&config)
	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func applyDefaults(c *Config) {
	if c.StorageDir == "" {
		c.StorageDir = "data"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Trim.Margin == 0 {
		c.Trim.Margin = DefaultMargin
	}
	if c.Trim.Background == "" {
		// Grey, the unexplored-area color of the default Valetudo palette.
		c.Trim.Background = "#7B7B7B"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "mapcam"
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = "mapcam"
	}
	for i := range c.Vacuums {
		if c.Vacuums[i].Floor == "" {
			c.Vacuums[i].Floor = "default"
		}
	}
}

func validate(c *Config) error {
	if c.Trim.Margin < 0 {
		return fmt.Errorf("trim.margin must not be negative, got %d", c.Trim.Margin)
	}
	if !ValidRotation(c.Trim.Rotation) {
		return fmt.Errorf("trim.rotation must be 0, 90, 180 or 270, got %d", c.Trim.Rotation)
	}
	if c.Trim.AspectRatio != "" {
		if _, err := ParseAspectRatio(c.Trim.AspectRatio); err != nil {
			return fmt.Errorf("trim.aspectRatio: %w", err)
		}
	}
	if _, err := ParseHexColor(c.Trim.Background); err != nil {
		return fmt.Errorf("trim.background: %w", err)
	}
	for i, vc := range c.Vacuums {
		if vc.ID == "" {
			return fmt.Errorf("vacuum[%d].id is required", i)
		}
		if vc.Topic == "" {
			return fmt.Errorf("vacuum[%d].topic is required for %s", i, vc.ID)
		}
	}
	return nil
}

// TrimDefaults converts the config's trim section into floor seeds
func (c *Config) TrimDefaults() TrimDefaults {
	d := TrimDefaults{
		Margin:   c.Trim.Margin,
		Rotation: c.Trim.Rotation,
		Offsets:  c.Trim.Offsets,
	}
	if c.Trim.AspectRatio != "" {
		if ratio, err := ParseAspectRatio(c.Trim.AspectRatio); err == nil {
			d.AspectRatio = &ratio
		}
	}
	return d
}

// GetVacuumByID returns the vacuum config for the given ID
func (c *Config) GetVacuumByID(id string) *VacuumConfig {
	for i := range c.Vacuums {
		if c.Vacuums[i].ID == id {
			return &c.Vacuums[i]
		}
	}
	return nil
}

// FloorForVacuum returns the floor id a vacuum's frames belong to
func (c *Config) FloorForVacuum(vacuumID string) string {
	if vc := c.GetVacuumByID(vacuumID); vc != nil {
		return vc.Floor
	}
	return ""
}
