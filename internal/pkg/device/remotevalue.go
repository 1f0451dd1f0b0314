package device

import (
	"strconv"
	"sync"
	"time"

	"github.com/mbeckers/knx-weather-integration/internal/pkg/buserr"
	"github.com/mbeckers/knx-weather-integration/internal/pkg/model"
)

// RemoteValue tracks the last decoded value received for one bound group
// address. A RemoteValue with no address never initializes; that is the
// "not monitored" state.
type RemoteValue struct {
	address model.GroupAddress
	dpt     model.DptName

	mu          sync.RWMutex
	value       string
	initialized bool
	updatedAt   time.Time
}

func NewRemoteValue(address model.GroupAddress, dpt model.DptName) *RemoteValue {
	return &RemoteValue{
		address: address,
		dpt:     dpt,
	}
}

// Monitored reports whether a group address is bound at all.
func (rv *RemoteValue) Monitored() bool {
	return rv.address.IsSet()
}

// Initialized reports whether at least one value has been received.
func (rv *RemoteValue) Initialized() bool {
	rv.mu.RLock()
	defer rv.mu.RUnlock()
	return rv.initialized
}

func (rv *RemoteValue) Address() model.GroupAddress {
	return rv.address
}

func (rv *RemoteValue) Dpt() model.DptName {
	return rv.dpt
}

// Update stores a freshly decoded value and reports whether it differs
// from the previous one. Updates on an unbound value are dropped.
func (rv *RemoteValue) Update(value string) bool {
	if !rv.Monitored() {
		return false
	}
	rv.mu.Lock()
	defer rv.mu.Unlock()
	changed := !rv.initialized || rv.value != value
	rv.value = value
	rv.initialized = true
	rv.updatedAt = time.Now()
	return changed
}

// Raw returns the decoded value as delivered by the gateway, and whether
// one has been received yet.
func (rv *RemoteValue) Raw() (string, bool) {
	rv.mu.RLock()
	defer rv.mu.RUnlock()
	return rv.value, rv.initialized
}

// Float converts the current value to a float64.
func (rv *RemoteValue) Float() (float64, error) {
	raw, ok := rv.Raw()
	if !ok {
		return 0, buserr.NewConversionError("value not initialized", "")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, buserr.NewConversionError("value is not numeric", raw)
	}
	return f, nil
}

// Bool converts the current value to a bool. The gateway encodes binary
// data points as "0"/"1" or "false"/"true".
func (rv *RemoteValue) Bool() (bool, error) {
	raw, ok := rv.Raw()
	if !ok {
		return false, buserr.NewConversionError("value not initialized", "")
	}
	switch raw {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, buserr.NewConversionError("value is not binary", raw)
}

func (rv *RemoteValue) UpdatedAt() time.Time {
	rv.mu.RLock()
	defer rv.mu.RUnlock()
	return rv.updatedAt
}
