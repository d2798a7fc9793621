// Copyright 2025 BARF Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"errors"
	"fmt"

	"github.com/barflabs/barfhost/internal/types"
	"gorm.io/gorm"
)

// Setting is one persisted key-value pair.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"type:text"`
	UpdatedAt int64  `gorm:"autoUpdateTime"`
}

// Setting keys for the persisted connection record. There is at most one
// value per key; saving overwrites.
const (
	keyRemoteAddress = "remoteAddress"
	keyCredential    = "credential"
	keyModelName     = "modelName"
)

// GetConnectionSettings returns the last persisted connection settings.
// Missing keys come back as empty fields, not as an error, so a fresh
// install simply yields a blank prefill.
func (s *Store) GetConnectionSettings() (types.ConnectionSettings, error) {
	settings := types.ConnectionSettings{}

	for _, kv := range []struct {
		key  string
		dest *string
	}{
		{keyRemoteAddress, &settings.RemoteAddress},
		{keyCredential, &settings.Credential},
		{keyModelName, &settings.ModelName},
	} {
		var row Setting
		result := s.db.Where("key = ?", kv.key).First(&row)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				continue
			}
			return types.ConnectionSettings{}, fmt.Errorf("failed to read setting %q: %v", kv.key, result.Error)
		}
		*kv.dest = row.Value
	}

	return settings, nil
}

// SaveConnectionSettings overwrites the persisted connection record with the
// settings of a successful bootstrap.
func (s *Store) SaveConnectionSettings(settings types.ConnectionSettings) error {
	for _, kv := range []struct {
		key   string
		value string
	}{
		{keyRemoteAddress, settings.RemoteAddress},
		{keyCredential, settings.Credential},
		{keyModelName, settings.ModelName},
	} {
		if err := s.upsert(kv.key, kv.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsert(key, value string) error {
	var row Setting
	result := s.db.Where("key = ?", key).First(&row)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		row = Setting{Key: key, Value: value}
		if err := s.db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create setting %q: %v", key, err)
		}
		return nil
	}
	if result.Error != nil {
		return fmt.Errorf("failed to get setting %q: %v", key, result.Error)
	}

	row.Value = value
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to update setting %q: %v", key, err)
	}
	return nil
}
