package mrisync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadConfig unmarshals a SyncBox from the given file. JSON is the native
// format; .yaml/.yml files are accepted too.
func LoadConfig(path string) (*SyncBox, error) {
	buff, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't read config file (%s)", path)
	}

	sb := &SyncBox{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buff, sb)
	default:
		err = json.Unmarshal(buff, sb)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed unmarshalling config (%s)", path)
	}

	return sb, nil
}
