// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package config_loader handles loading of configuration from YAML files.
package config_loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"
)

var envVarPlaceholder = regexp.MustCompile(`({{ *\w+.*?}})`)

// YAMLMetadata keeps track of the keys that have been defined in a YAML.
type YAMLMetadata map[string]bool

// Contains returns true if the argument key is present in the YAMLMetadata set.
func (p YAMLMetadata) Contains(key string) bool {
	_, ok := p[key]
	return ok
}

// LoadYamlConfig will populate the given configObject (should be a pointer to a struct)
// with whichever of the given filenames it finds first. There will be no error if a
// config file is not found - the configObject is assumed to have reasonable defaults.
// The returned string is the path of the file that was read, empty if none.
func LoadYamlConfig(configObject interface{}, configFilePaths ...string) (*YAMLMetadata, string, error) {
	keys := YAMLMetadata{}

	for _, filePath := range configFilePaths {
		if filePath == "" || !fileExists(filePath) {
			continue
		}

		rawConfig, err := os.ReadFile(filePath)
		if err != nil {
			return nil, filePath, err
		}

		rawConfig, err = ExpandEnvVars(rawConfig)
		if err != nil {
			return nil, filePath, err
		}

		meta, err := ParseConfig(rawConfig, configObject)
		return meta, filePath, err
	}
	return &keys, "", nil
}

// ParseConfig unmarshals rawConfig into configObject and records which top level keys were present.
func ParseConfig(rawConfig []byte, configObject interface{}) (keys *YAMLMetadata, err error) {
	// First we unmarshall as the configuration object
	err = yaml.Unmarshal(rawConfig, configObject)
	if err != nil {
		return
	}

	// then we unmarshall as a MapSlice to get information about the present keys
	metadata := yaml.MapSlice{}
	err = yaml.Unmarshal(rawConfig, &metadata)
	if err != nil {
		return
	}

	k := YAMLMetadata{}
	for _, item := range metadata {
		if key, ok := item.Key.(string); ok {
			k[key] = true
		}
	}
	keys = &k

	return
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return !os.IsNotExist(err)
	}
	return !info.IsDir()
}

// ExpandEnvVars replaces every {{ ENV_VAR }} placeholder by the variable value.
// Lines commented out with '#' are left untouched.
func ExpandEnvVars(content []byte) ([]byte, error) {
	lines := strings.SplitAfter(string(content), "\n")

	var out strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			out.WriteString(line)
			continue
		}
		expanded, err := expandLine(line)
		if err != nil {
			return nil, err
		}
		out.WriteString(expanded)
	}

	return []byte(out.String()), nil
}

func expandLine(line string) (string, error) {
	matches := envVarPlaceholder.FindAllStringIndex(line, -1)
	if len(matches) == 0 {
		return line, nil
	}

	var newLine strings.Builder
	var lastReplacement int
	for _, idx := range matches {
		evStart := idx[0] + 2 // drop {{
		evEnd := idx[1] - 2   // drop }}
		if evEnd < evStart {
			return line, fmt.Errorf("cannot replace configuration environment variables")
		}

		evName := strings.TrimSpace(line[evStart:evEnd])
		evVal, exist := os.LookupEnv(evName)
		if !exist {
			return "", fmt.Errorf("cannot replace configuration environment variables, missing env-var: %s", evName)
		}
		newLine.WriteString(line[lastReplacement:idx[0]])
		newLine.WriteString(evVal)
		lastReplacement = idx[1]
	}
	newLine.WriteString(line[lastReplacement:])

	return newLine.String(), nil
}
