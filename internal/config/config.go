// SPDX-License-Identifier: Apache-2.0

// Package config loads the optional project-level rbmc.yaml file and
// merges it with CLI flags, CLI always winning. Uses gopkg.in/yaml.v3,
// matching the ambient stack's choice for the one structured-file-read
// concern in this repo.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the shape of an on-disk rbmc.yaml project file. Every field
// mirrors one of the CLI flags; a zero value means "not set in
// the file", so the CLI default (already applied by cobra) always wins
// over an absent file entry.
type File struct {
	EntryFunction string `yaml:"entry_function"`
	Unwind *int `yaml:"unwind"`
	SMTStrategy string `yaml:"smt_strategy"`
	NoSlice *bool `yaml:"no_slice"`
	ShowVCC *bool `yaml:"show_vcc"`
	ShowSMTModel *bool `yaml:"show_smt_model"`
	Solver string `yaml:"solver"`
	LogLevel string `yaml:"log_level"`
}

// Load reads and parses path. A missing file is not an error: presence is optional.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return &f, nil
}

// MergeString returns fileVal when cliVal is the flag's zero/default and
// fileVal is non-empty, else cliVal (CLI wins).
func MergeString(cliVal, cliDefault, fileVal string) string {
	if cliVal == cliDefault && fileVal != "" {
		return fileVal
	}
	return cliVal
}

// MergeInt returns *fileVal when cliVal equals cliDefault and fileVal is
// set, else cliVal.
func MergeInt(cliVal, cliDefault int, fileVal *int) int {
	if cliVal == cliDefault && fileVal != nil {
		return *fileVal
	}
	return cliVal
}

// MergeBool returns *fileVal when cliVal is false (the flag's universal
// default for every boolean flag) and fileVal is set, else cliVal.
func MergeBool(cliVal bool, fileVal *bool) bool {
	if !cliVal && fileVal != nil {
		return *fileVal
	}
	return cliVal
}
