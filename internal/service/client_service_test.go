package service

import (
	"context"
	"testing"

	"atelier/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientServiceForTest(db *memDB) (ClientService, *fakeAudit) {
	audit := newFakeAudit()
	svc := NewClientService(&fakeClientRepo{db: db}, audit, fakeTxManager{}, testLogger())
	return svc, audit
}

func TestClientCreateValidatesTaxIDShape(t *testing.T) {
	svc, _ := newClientServiceForTest(newMemDB())
	actor := Actor{ID: uuid.New()}

	for _, rucDni := range []string{"", "1234567", "123456789", "1234567890123", "1234567a", "12345678901a"} {
		_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Acme", RucDni: rucDni}, actor)
		require.Error(t, err, "rucDni %q should be rejected", rucDni)
		assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
	}
}

func TestClientCreateRejectsActiveDNIHolder(t *testing.T) {
	db := newMemDB()
	db.addClient("12345678", true)
	svc, _ := newClientServiceForTest(db)

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Acme", RucDni: "12345678"}, Actor{ID: uuid.New()})

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "This DNI is already in use", kindErr.Message)
}

func TestClientCreateRejectsActiveRUCHolder(t *testing.T) {
	db := newMemDB()
	db.addClient("12345678901", true)
	svc, _ := newClientServiceForTest(db)

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Acme", RucDni: "12345678901"}, Actor{ID: uuid.New()})

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "This RUC is already in use", kindErr.Message)
}

func TestClientTaxIDFreedBySoftDelete(t *testing.T) {
	db := newMemDB()
	svc, audit := newClientServiceForTest(db)
	actor := Actor{ID: uuid.New()}

	first, err := svc.Create(context.Background(), CreateClientRequest{Name: "Acme", RucDni: "12345678"}, actor)
	require.NoError(t, err)

	// Active holder blocks a second create.
	_, err = svc.Create(context.Background(), CreateClientRequest{Name: "Other", RucDni: "12345678"}, actor)
	require.Error(t, err)

	// Soft-deleting the holder frees the tax id.
	require.NoError(t, svc.RemoveAll(context.Background(), []string{first.ID}, actor))
	second, err := svc.Create(context.Background(), CreateClientRequest{Name: "Other", RucDni: "12345678"}, actor)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Both clients carry their own audit trail.
	assert.Len(t, audit.entriesFor(uuid.MustParse(first.ID)), 2)  // CREATE + DELETE
	assert.Len(t, audit.entriesFor(uuid.MustParse(second.ID)), 1) // CREATE
}

func TestClientCreateRollsBackWhenAuditFails(t *testing.T) {
	db := newMemDB()
	svc, audit := newClientServiceForTest(db)
	audit.failRecord = true

	_, err := svc.Create(context.Background(), CreateClientRequest{Name: "Acme", RucDni: "12345678"}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Empty(t, db.clients)
}

func TestClientFindOneRejectsInactive(t *testing.T) {
	db := newMemDB()
	client := db.addClient("12345678", false)
	svc, _ := newClientServiceForTest(db)

	_, err := svc.FindOne(context.Background(), client.ID.String())

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "client is inactive", kindErr.Message)
}

func TestClientFindAllFiltersInactiveForRegularActors(t *testing.T) {
	db := newMemDB()
	db.addClient("12345678", true)
	db.addClient("87654321", false)
	svc, _ := newClientServiceForTest(db)

	clients, err := svc.FindAll(context.Background(), Actor{ID: uuid.New()})
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	clients, err = svc.FindAll(context.Background(), Actor{ID: uuid.New(), IsSuperAdmin: true})
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestClientUpdateSkipsWriteWhenNothingChanged(t *testing.T) {
	db := newMemDB()
	client := db.addClient("12345678", true)
	svc, audit := newClientServiceForTest(db)

	same := client.Name
	resp, err := svc.Update(context.Background(), client.ID.String(), UpdateClientRequest{Name: &same}, Actor{ID: uuid.New()})

	require.NoError(t, err)
	assert.Equal(t, client.ID.String(), resp.ID)
	assert.Empty(t, audit.entries)
}

func TestClientUpdateAppliesDiffAndAudits(t *testing.T) {
	db := newMemDB()
	client := db.addClient("12345678", true)
	svc, audit := newClientServiceForTest(db)

	name := "Renamed"
	phone := "999888777"
	resp, err := svc.Update(context.Background(), client.ID.String(), UpdateClientRequest{
		Name:  &name,
		Phone: &phone,
	}, Actor{ID: uuid.New()})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", resp.Name)
	assert.Equal(t, "999888777", resp.Phone)
	assert.Len(t, audit.entriesFor(client.ID), 1)
}

func TestClientUpdateTaxIDCollisionWithInactiveHolder(t *testing.T) {
	db := newMemDB()
	db.addClient("87654321", false)
	client := db.addClient("12345678", true)
	svc, _ := newClientServiceForTest(db)

	rucDni := "87654321"
	_, err := svc.Update(context.Background(), client.ID.String(), UpdateClientRequest{RucDni: &rucDni}, Actor{ID: uuid.New()})

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, kindErr.Message, "contact a superadmin")
}

func TestClientUpdateTaxIDCollisionWithActiveHolder(t *testing.T) {
	db := newMemDB()
	db.addClient("87654321", true)
	client := db.addClient("12345678", true)
	svc, _ := newClientServiceForTest(db)

	rucDni := "87654321"
	_, err := svc.Update(context.Background(), client.ID.String(), UpdateClientRequest{RucDni: &rucDni}, Actor{ID: uuid.New()})

	require.Error(t, err)
	kindErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "This DNI is already in use", kindErr.Message)
}

func TestClientBulkLifecycle(t *testing.T) {
	db := newMemDB()
	a := db.addClient("12345678", true)
	b := db.addClient("87654321", true)
	svc, audit := newClientServiceForTest(db)
	actor := Actor{ID: uuid.New()}

	ids := []string{a.ID.String(), b.ID.String()}
	require.NoError(t, svc.RemoveAll(context.Background(), ids, actor))
	assert.False(t, db.clients[a.ID].IsActive)
	assert.False(t, db.clients[b.ID].IsActive)

	require.NoError(t, svc.ReactivateAll(context.Background(), ids, actor))
	assert.True(t, db.clients[a.ID].IsActive)
	assert.True(t, db.clients[b.ID].IsActive)

	// DELETE + UPDATE per client.
	assert.Len(t, audit.entriesFor(a.ID), 2)
	assert.Len(t, audit.entriesFor(b.ID), 2)
}

func TestClientBulkLifecycleRejectsUnknownIDs(t *testing.T) {
	svc, _ := newClientServiceForTest(newMemDB())

	err := svc.RemoveAll(context.Background(), []string{uuid.NewString()}, Actor{ID: uuid.New()})

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
