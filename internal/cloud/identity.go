package cloud

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

// NullHID is the literal a restored or server-supplied handle carries when
// the record exists but the handle itself is null. Such an identity is
// treated as connected without any network call.
const NullHID = "null"

// Gateway is the gateway's cloud identity.
type Gateway struct {
	HID             string `json:"hid,omitempty"`
	UID             string `json:"uid"`
	Name            string `json:"name"`
	OS              string `json:"osName"`
	Type            string `json:"type"`
	SDKVersion      string `json:"sdkVersion"`
	SoftwareName    string `json:"softwareName"`
	SoftwareVersion string `json:"softwareVersion"`
}

// HasHID reports whether the gateway holds a handle, null or not.
func (g *Gateway) HasHID() bool { return g.HID != "" }

// NullHandle reports whether the handle is present but null.
func (g *Gateway) NullHandle() bool { return g.HID == NullHID }

// Reset releases everything the gateway identity holds.
func (g *Gateway) Reset() { *g = Gateway{} }

// Device is the device's cloud identity, parented to one gateway.
type Device struct {
	HID             string `json:"hid,omitempty"`
	GatewayHID      string `json:"gatewayHid"`
	UID             string `json:"uid"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	SoftwareName    string `json:"softwareName"`
	SoftwareVersion string `json:"softwareVersion"`
	Enabled         bool   `json:"enabled"`
}

// HasHID reports whether the device has been registered or restored.
func (d *Device) HasHID() bool { return d.HID != "" }

// Reset releases everything the device identity holds.
func (d *Device) Reset() { *d = Device{} }

// PrepareGateway fills every empty field of gw from cfg. The uid is
// "<prefix>-<hardware id>". Fields already set are left alone so a restored
// identity is never overwritten.
func PrepareGateway(gw *Gateway, cfg config.GatewayConfig, hardwareID string) {
	setDefault(&gw.Name, cfg.Name)
	setDefault(&gw.OS, cfg.OS)
	setDefault(&gw.Type, cfg.Type)
	setDefault(&gw.SDKVersion, cfg.SDKVersion)
	setDefault(&gw.SoftwareName, cfg.SoftwareName)
	setDefault(&gw.SoftwareVersion, cfg.SoftwareVersion)
	if gw.UID == "" {
		gw.UID = fmt.Sprintf("%s-%s", cfg.UIDPrefix, hardwareID)
	}
}

// PrepareDevice fills every empty field of dev from cfg and links it to gw.
// The uid is "<gateway uid>-<suffix>".
func PrepareDevice(gw *Gateway, dev *Device, cfg config.DeviceConfig) {
	setDefault(&dev.Name, cfg.Name)
	setDefault(&dev.Type, cfg.Type)
	setDefault(&dev.SoftwareName, cfg.SoftwareName)
	setDefault(&dev.SoftwareVersion, cfg.SoftwareVersion)
	if dev.UID == "" {
		dev.UID = fmt.Sprintf("%s-%s", gw.UID, cfg.UIDSuffix)
	}
	if gw.HID != "" && gw.HID != NullHID {
		dev.GatewayHID = gw.HID
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// HardwareID returns the lowercase hex MAC of the first up, non-loopback
// interface. Hosts without one get a name-based UUID of the hostname, which
// is stable across reboots.
func HardwareID() string {
	ifaces, err := net.Interfaces()
	if err == nil {
		if id := macFromInterfaces(ifaces); id != "" {
			return id
		}
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return hostnameID(host)
}

func macFromInterfaces(ifaces []net.Interface) string {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return hex.EncodeToString(iface.HardwareAddr)
	}
	return ""
}

func hostnameID(host string) string {
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(strings.ToLower(host)))
	return strings.ReplaceAll(id.String(), "-", "")
}
