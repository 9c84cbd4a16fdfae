package core

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/viper"
)

var (
	// ErrMissingKey is returned when a required setting has no value.
	ErrMissingKey = errors.New("missing required setting")
	// ErrInvalidSetting is returned when a setting is present but unusable.
	ErrInvalidSetting = errors.New("invalid setting")
)

// Settings resolves configuration keys to values with required or
// optional-with-default semantics. Keys use viper's dotted notation, e.g.
// backend.login_page.
type Settings struct {
	v *viper.Viper
}

// NewSettings wraps an already populated viper instance.
func NewSettings(v *viper.Viper) *Settings {
	return &Settings{v: v}
}

// Get returns the value of key. If the key is unset, def is returned when
// optional is true and ErrMissingKey otherwise.
func (s *Settings) Get(key string, optional bool, def string) (string, error) {
	if !s.v.IsSet(key) {
		if optional {
			return def, nil
		}
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return s.v.GetString(key), nil
}

// GetInt is Get for integer settings. A value that is not an integer is an
// error even when the key is optional.
func (s *Settings) GetInt(key string, optional bool, def int) (int, error) {
	raw, err := s.Get(key, optional, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %q is not an integer", key, raw)
	}
	return n, nil
}

// GetBool is Get for boolean settings.
func (s *Settings) GetBool(key string, optional bool, def bool) (bool, error) {
	raw, err := s.Get(key, optional, strconv.FormatBool(def))
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("setting %s: %q is not a boolean", key, raw)
	}
	return b, nil
}
