// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

package connector

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/emberworks/ember/lib/ref"
)

// Config holds the connector's YAML configuration.
//
//	homeserver: https://matrix.example.org
//	mxid: "@bot:example.org"
//	password: hunter2
//	rooms:
//	  main: "#general:example.org"
//	nick: ember
type Config struct {
	// Homeserver is the base URL of the Matrix homeserver.
	Homeserver string `yaml:"homeserver"`

	// MXID is the bot's fully-qualified Matrix user ID. Required
	// with AccessToken; with Password it is the login identifier.
	MXID string `yaml:"mxid"`

	// Password authenticates with the m.login.password flow. Ignored
	// when AccessToken is set.
	Password string `yaml:"password"`

	// AccessToken restores an existing session without logging in.
	AccessToken string `yaml:"access_token"`

	// Rooms maps conversation names to room aliases or IDs. Events
	// may address rooms by name, alias, or ID.
	Rooms map[string]string `yaml:"rooms"`

	// Nick, when set, is the display name the bot asserts at connect
	// time.
	Nick string `yaml:"nick"`

	// RoomSpecificNicks makes display-name resolution consult the
	// room member list before the global profile.
	RoomSpecificNicks bool `yaml:"room_specific_nicks"`

	// DeviceName labels the login session in the user's device list.
	DeviceName string `yaml:"device_name"`

	// MaxRetryWait caps the cumulative rate-limit wait per API call.
	// Zero honors server-dictated waits indefinitely.
	MaxRetryWait time.Duration `yaml:"max_retry_wait"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("connector: reading config: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("connector: parsing config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("connector: invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the config for completeness, applying defaults.
func (c *Config) Validate() error {
	if c.Homeserver == "" {
		c.Homeserver = "https://matrix.org"
	}
	if c.DeviceName == "" {
		c.DeviceName = "ember"
	}
	if c.MXID == "" {
		return fmt.Errorf("mxid is required")
	}
	if _, err := ref.ParseUserID(c.MXID); err != nil {
		return err
	}
	if c.Password == "" && c.AccessToken == "" {
		return fmt.Errorf("either password or access_token is required")
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room is required")
	}
	for name, room := range c.Rooms {
		if room == "" {
			return fmt.Errorf("room %q has no alias or ID", name)
		}
		if room[0] != '#' && room[0] != '!' {
			return fmt.Errorf("room %q must be an alias (#...) or room ID (!...), got %q", name, room)
		}
	}
	return nil
}
