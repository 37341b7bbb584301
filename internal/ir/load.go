// SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Load reads a Program from its JSON wire form. No ecosystem serialization
// library targets this schema, so the stdlib encoding/json round-trip is
// used directly (see DESIGN.md).
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading IR file %s", path)
	}
	var prog Program
	if err := json.Unmarshal(data, &prog); err != nil {
		return nil, errors.Wrapf(err, "parsing IR file %s", path)
	}
	return &prog, nil
}
