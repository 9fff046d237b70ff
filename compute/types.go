package compute

import "context"

// Cache API names. They are part of the persisted cache id and must not
// change.
const (
	APIListInstances         = "listInstances"
	APIDescribeInstance      = "describeInstance"
	APIListNetworkInterfaces = "listNetworkInterfaces"
)

// Instance is one member of a scale set.
type Instance struct {
	// InstanceID is the positional id within the group ("0", "1", ...).
	InstanceID string `json:"instanceId"`
	// VMID is the stable unique id of the virtual machine.
	VMID              string            `json:"vmId"`
	Name              string            `json:"name"`
	ComputerName      string            `json:"computerName,omitempty"`
	ProvisioningState string            `json:"provisioningState,omitempty"`
	PowerState        string            `json:"powerState,omitempty"`
	Zones             []string          `json:"zones,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// NetworkInterface is a NIC attached to a scale-set instance.
type NetworkInterface struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	InstanceID string `json:"instanceId,omitempty"`
	PrivateIP  string `json:"privateIp,omitempty"`
	Primary    bool   `json:"primary"`
}

// Origin is the management API. Each method performs one call and returns
// nil when the API has nothing to report.
type Origin interface {
	ListInstances(ctx context.Context, group string) ([]Instance, error)
	GetInstance(ctx context.Context, group, instanceID string) (*Instance, error)
	ListNetworkInterfaces(ctx context.Context, group string) ([]NetworkInterface, error)
}
