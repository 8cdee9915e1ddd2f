package cloud

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Platform is the cloud platform selected by the gateway config.
type Platform int

// Known platforms. Anything unrecognised resolves to PlatformGeneric.
const (
	PlatformGeneric Platform = iota
	PlatformIoTConnect
	PlatformIBM
	PlatformAzure
)

// String returns the platform's wire name.
func (p Platform) String() string {
	switch p {
	case PlatformIoTConnect:
		return "IotConnect"
	case PlatformIBM:
		return "IBM"
	case PlatformAzure:
		return "Azure"
	default:
		return "generic"
	}
}

// ParsePlatform maps a cloudPlatform value to a Platform.
func ParsePlatform(s string) Platform {
	switch s {
	case "IotConnect":
		return PlatformIoTConnect
	case "IBM":
		return PlatformIBM
	case "Azure":
		return PlatformAzure
	default:
		return PlatformGeneric
	}
}

// Platform profiles selectable through cloud.profile.
const (
	ProfileGeneric = "generic"
	ProfileIBM     = "ibm"
	ProfileAzure   = "azure"
)

// IBMConfig holds the ibm sub-object of a gateway config.
type IBMConfig struct {
	OrganizationID string `json:"organizationId"`
	GatewayType    string `json:"gatewayType"`
	GatewayID      string `json:"gatewayId"`
	AuthToken      string `json:"authToken"`
	AuthMethod     string `json:"authMethod"`
}

// AzureConfig holds the azure sub-object of a gateway config.
type AzureConfig struct {
	Host      string `json:"host"`
	AccessKey string `json:"accessKey"`
}

// GatewayConfig is the configuration fetched after gateway registration.
// At most one of IBM and Azure is set, chosen by the profile.
type GatewayConfig struct {
	Platform  Platform
	APIKey    string
	SecretKey string
	IBM       *IBMConfig
	Azure     *AzureConfig
}

// Reset releases everything the config holds.
func (c *GatewayConfig) Reset() { *c = GatewayConfig{} }

type gatewayConfigWire struct {
	CloudPlatform *string `json:"cloudPlatform"`
	Key           *struct {
		APIKey    string `json:"apiKey"`
		SecretKey string `json:"secretKey"`
	} `json:"key"`
	IBM   *IBMConfig   `json:"ibm"`
	Azure *AzureConfig `json:"azure"`
}

// ParseGatewayConfig decodes a gateway config response body.
//
// A body without cloudPlatform is invalid. Both key.apiKey and
// key.secretKey are required; missing either returns ErrMissingKeys and no
// partial config. profile selects which platform sub-object is kept.
func ParseGatewayConfig(body []byte, profile string) (GatewayConfig, error) {
	var wire gatewayConfigWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return GatewayConfig{}, fmt.Errorf("%w: gateway config: %w", ErrInvalidResponse, err)
	}
	if wire.CloudPlatform == nil {
		return GatewayConfig{}, fmt.Errorf("%w: gateway config: no cloudPlatform", ErrInvalidResponse)
	}
	if wire.Key == nil || wire.Key.APIKey == "" || wire.Key.SecretKey == "" {
		return GatewayConfig{}, ErrMissingKeys
	}

	cfg := GatewayConfig{
		Platform:  ParsePlatform(*wire.CloudPlatform),
		APIKey:    wire.Key.APIKey,
		SecretKey: wire.Key.SecretKey,
	}

	switch strings.ToLower(profile) {
	case ProfileIBM:
		cfg.IBM = wire.IBM
	case ProfileAzure:
		cfg.Azure = wire.Azure
	}
	return cfg, nil
}
