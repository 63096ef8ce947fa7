package properties

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/weidtools/weid-config/internal/runconfig"
)

// loadOptions read Java-style properties: one key=value per line, values
// taken verbatim (URLs carry ':' and passwords may carry '#' or ';').
var loadOptions = ini.LoadOptions{
	Loose:                   true,
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	SkipUnrecognizableLines: true,
	PreserveSurroundedQuote: true,
	KeyValueDelimiters:      "=",
}

// Properties is a snapshot of a generated properties file.
type Properties struct {
	file *ini.File
}

// Reload reads path into a new snapshot. A missing file yields an empty
// snapshot.
func Reload(path string) (Properties, error) {
	file, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return Properties{}, fmt.Errorf("load properties %s: %w", path, err)
	}
	return Properties{file: file}, nil
}

// Get returns the value of key, or the empty string.
func (p Properties) Get(key string) string {
	if p.file == nil {
		return ""
	}
	return p.file.Section(ini.DefaultSection).Key(key).String()
}

// ChainConfig is the typed view of fisco.properties.
type ChainConfig struct {
	Version               string `ini:"bcos.version"`
	ChainID               string `ini:"chain.id"`
	GroupID               string `ini:"group.id"`
	CNSProfileActive      string `ini:"cns.profile.active"`
	CNSContractFollow     string `ini:"cns.contract.follow"`
	WeIDAddress           string `ini:"weId.contractaddress"`
	CPTAddress            string `ini:"cpt.contractaddress"`
	IssuerAddress         string `ini:"issuer.contractaddress"`
	EvidenceAddress       string `ini:"evidence.contractaddress"`
	SpecificIssuerAddress string `ini:"specificissuer.contractaddress"`
}

// LoadChainConfig reads fisco.properties at path into a ChainConfig.
func LoadChainConfig(path string) (ChainConfig, error) {
	props, err := Reload(path)
	if err != nil {
		return ChainConfig{}, err
	}

	var cfg ChainConfig
	if err := props.file.Section(ini.DefaultSection).MapTo(&cfg); err != nil {
		return ChainConfig{}, fmt.Errorf("map chain config: %w", err)
	}
	return cfg, nil
}

// UpdateKey rewrites the value of key in the properties file at path,
// leaving every other line as it was.
func UpdateKey(path, key, value string) error {
	lines, err := runconfig.ReadLines(path)
	if err != nil {
		return err
	}
	return runconfig.WriteLines(path, runconfig.Rewrite(lines, map[string]string{key: value}))
}
