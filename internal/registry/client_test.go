package registry

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/testbed/test/testutil"
)

func testInstance() Instance {
	return Instance{
		ServiceName: "user-service",
		IP:          "10.1.2.3",
		Port:        8082,
		NamespaceID: "public",
		GroupName:   "DEFAULT_GROUP",
		Ephemeral:   true,
	}
}

func TestClient_RegistrationLifecycle(t *testing.T) {
	mock := testutil.NewMockRegistry(t).Build()
	client := NewClient(mock.URL, nil)
	inst := testInstance()
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, inst))
	assert.True(t, mock.IsRegistered(inst.GroupName, inst.ServiceName, inst.IP, inst.Port))

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Heartbeat(ctx, inst))
	}
	assert.Equal(t, 3, mock.BeatCount(inst.GroupName, inst.ServiceName, inst.IP, inst.Port))

	require.NoError(t, client.Deregister(ctx, inst))
	assert.False(t, mock.IsRegistered(inst.GroupName, inst.ServiceName, inst.IP, inst.Port))
}

func TestClient_RegisterSendsInstanceIdentity(t *testing.T) {
	mock := testutil.NewMockRegistry(t).Build()
	client := NewClient(mock.URL, nil)
	inst := testInstance()

	require.NoError(t, client.Register(context.Background(), inst))

	req := mock.LastRequest("/nacos/v1/ns/instance")
	require.NotNil(t, req)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, inst.ServiceName, req.Form["serviceName"])
	assert.Equal(t, inst.IP, req.Form["ip"])
	assert.Equal(t, strconv.Itoa(inst.Port), req.Form["port"])
	assert.Equal(t, inst.NamespaceID, req.Form["namespaceId"])
	assert.Equal(t, inst.GroupName, req.Form["groupName"])
	assert.Equal(t, "true", req.Form["healthy"])
	assert.Equal(t, "1.0", req.Form["weight"])
	assert.Equal(t, "true", req.Form["ephemeral"])
}

func TestClient_ErrorsArePropagatedNotFatal(t *testing.T) {
	mock := testutil.NewMockRegistry(t).
		WithRegisterFailure().
		WithHeartbeatFailure().
		WithDeregisterFailure().
		Build()
	client := NewClient(mock.URL, nil)
	inst := testInstance()
	ctx := context.Background()

	assert.Error(t, client.Register(ctx, inst))
	assert.Error(t, client.Heartbeat(ctx, inst))
	assert.Error(t, client.Deregister(ctx, inst))
}

func TestClient_UnreachableRegistry(t *testing.T) {
	// Nothing listens here.
	client := NewClient("http://127.0.0.1:1", nil)

	err := client.Register(context.Background(), testInstance())
	assert.Error(t, err)
}
