package openstack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bsinger98/MHBench/pkg/cloud"
)

func TestParseAddressesMapShape(t *testing.T) {
	raw := json.RawMessage(`{"manage_network": ["192.168.198.14"], "subnet_1": ["192.168.201.10", "10.20.20.40"]}`)
	assert.ElementsMatch(t,
		[]string{"192.168.198.14", "192.168.201.10", "10.20.20.40"},
		parseAddresses(raw))
}

func TestParseAddressesStringShape(t *testing.T) {
	raw := json.RawMessage(`"manage_network=192.168.198.14; subnet_1=192.168.201.10, 10.20.20.40"`)
	assert.Equal(t,
		[]string{"192.168.198.14", "192.168.201.10", "10.20.20.40"},
		parseAddresses(raw))
}

func TestParseAddressesEmpty(t *testing.T) {
	assert.Nil(t, parseAddresses(nil))
	assert.Nil(t, parseAddresses(json.RawMessage(`{}`)))
}

func TestClassifyConflict(t *testing.T) {
	err := classify("ConflictException: 409: Client Error")
	assert.ErrorIs(t, err, cloud.ErrAlreadyExists)
}

func TestClassifyNotFound(t *testing.T) {
	err := classify("No Server found for ghost (HTTP 404)")
	assert.ErrorIs(t, err, cloud.ErrNotFound)
}

func TestClassifyOther(t *testing.T) {
	err := classify("Quota exceeded for instances")
	assert.NotErrorIs(t, err, cloud.ErrAlreadyExists)
	assert.NotErrorIs(t, err, cloud.ErrNotFound)
}

func TestServerDetailToServer(t *testing.T) {
	detail := serverDetail{
		ID:     "abc",
		Name:   "host_a",
		Status: cloud.StatusError,
		Fault:  &faultDetail{Message: "no valid host was found"},
	}
	server := detail.toServer()
	assert.Equal(t, "host_a", server.Name)
	assert.Equal(t, cloud.StatusError, server.Status)
	assert.Equal(t, "no valid host was found", server.Fault)
}
