package buserr

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the gateway stops answering heartbeats.
var ErrTimeout = errors.New("gateway timeout")

// CommunicationError signals that the bus gateway is unreachable or the
// websocket broke mid-session.
type CommunicationError struct {
	Message string
	Err     error
}

func (e *CommunicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bus communication error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("bus communication error: %s", e.Message)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

func NewCommunicationError(message string, err error) *CommunicationError {
	return &CommunicationError{Message: message, Err: err}
}

// CouldNotParseTelegram signals a gateway payload that did not match the
// expected telegram shape.
type CouldNotParseTelegram struct {
	Description string
	Destination string
}

func (e *CouldNotParseTelegram) Error() string {
	if e.Destination != "" {
		return fmt.Sprintf("could not parse telegram: %s (destination %s)", e.Description, e.Destination)
	}
	return fmt.Sprintf("could not parse telegram: %s", e.Description)
}

func NewCouldNotParseTelegram(description, destination string) *CouldNotParseTelegram {
	return &CouldNotParseTelegram{Description: description, Destination: destination}
}

// CouldNotParseAddress signals a malformed group address.
type CouldNotParseAddress struct {
	Address string
}

func (e *CouldNotParseAddress) Error() string {
	return fmt.Sprintf("could not parse group address %q", e.Address)
}

func NewCouldNotParseAddress(address string) *CouldNotParseAddress {
	return &CouldNotParseAddress{Address: address}
}

// ConversionError signals a decoded value that cannot be converted to the
// type the bound measurement expects.
type ConversionError struct {
	Description string
	Value       string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: %s (value %q)", e.Description, e.Value)
}

func NewConversionError(description, value string) *ConversionError {
	return &ConversionError{Description: description, Value: value}
}

// DeviceIllegalValue signals an attempt to command a device with a value
// outside its legal range.
type DeviceIllegalValue struct {
	Description string
	Value       any
}

func (e *DeviceIllegalValue) Error() string {
	return fmt.Sprintf("illegal value for device: %s (value %v)", e.Description, e.Value)
}

func NewDeviceIllegalValue(description string, value any) *DeviceIllegalValue {
	return &DeviceIllegalValue{Description: description, Value: value}
}
