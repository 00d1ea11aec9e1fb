package cassandra

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JIeeiroSst/cassutils/codec"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

type Patient struct {
	PatientID uuid.UUID `cql:"patient_id,partition"`
	Recorded  time.Time `cql:"recorded,clustering"`
	Name      string
	Gender    Gender
	Notes     string `cql:"-"`
	internal  int
}

func (Patient) TableName() string { return "ehr.patient" }

type EncounterEvent struct {
	OrganisationID string `cql:",partition"`
	EventID        string `cql:",partition"`
	Summary        string
}

type noKey struct {
	Name string
}

type badTag struct {
	ID string `cql:"id,primary"`
}

func reflectValue(p *Patient) reflect.Value {
	return reflect.ValueOf(p).Elem()
}

func newTestManager(t *testing.T) *MappingManager {
	t.Helper()
	registry := codec.NewRegistry()
	require.NoError(t, codec.RegisterDefaults(registry))
	gender, err := codec.NewEnumCodec(map[Gender]string{
		GenderUnknown: "UNKNOWN",
		GenderMale:    "MALE",
		GenderFemale:  "FEMALE",
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(gender))

	session := &fakeSession{}
	return NewMappingManager(session, NewStatementCache(session), registry)
}

func TestMapperStatements(t *testing.T) {
	m := newTestManager(t)

	patients, err := NewMapper[Patient](m)
	require.NoError(t, err)
	assert.Equal(t, "ehr.patient", patients.Table())
	assert.Equal(t, []string{"patient_id", "recorded", "name", "gender"}, patients.Columns())
	assert.Equal(t, []string{"patient_id", "recorded"}, patients.table.keyNames)
	assert.Equal(t, patients.Columns(), patients.table.insertNames)
	assert.True(t, strings.HasPrefix(patients.table.selectCQL, "SELECT patient_id,recorded,name,gender FROM ehr.patient WHERE "))
	assert.True(t, strings.HasPrefix(patients.table.insertCQL, "INSERT INTO ehr.patient (patient_id,recorded,name,gender)"))
	assert.True(t, strings.HasPrefix(patients.table.deleteCQL, "DELETE FROM ehr.patient WHERE "))
	byName := patients.table.where("name = ?")
	assert.True(t, strings.HasPrefix(byName, "SELECT patient_id,recorded,name,gender FROM ehr.patient "))
	assert.True(t, strings.HasSuffix(byName, " WHERE name = ?"))

	events, err := NewMapper[EncounterEvent](m)
	require.NoError(t, err)
	assert.Equal(t, "encounter_event", events.Table())
	assert.Equal(t, []string{"organisation_id", "event_id"}, events.table.keyNames)

	again, err := NewMapper[Patient](m)
	require.NoError(t, err)
	assert.Same(t, patients.table, again.table)
}

type Audit struct {
	CreatedBy string
	UpdatedBy string
}

type Prescription struct {
	PrescriptionID string `cql:"prescription_id,partition"`
	HTTPSource     string
	Address2Line   string
	Audit
}

type duplicateColumn struct {
	ID    string `cql:"id,partition"`
	Other string `cql:"id"`
}

type duplicateEmbedded struct {
	CreatedBy string `cql:"created_by,partition"`
	Audit
}

func TestMapperColumns(t *testing.T) {
	m := newTestManager(t)

	prescriptions, err := NewMapper[Prescription](m)
	require.NoError(t, err)
	assert.Equal(t, "prescription", prescriptions.Table())
	assert.Equal(t, []string{"prescription_id", "http_source", "address2_line", "created_by", "updated_by"}, prescriptions.Columns())

	values, err := prescriptions.values(&Prescription{
		PrescriptionID: "rx-1",
		HTTPSource:     "portal",
		Address2Line:   "flat 2",
		Audit:          Audit{CreatedBy: "nurse", UpdatedBy: "doctor"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"rx-1", "portal", "flat 2", "nurse", "doctor"}, values)

	_, err = NewMapper[duplicateColumn](m)
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = NewMapper[duplicateEmbedded](m)
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestMapperInvalidTypes(t *testing.T) {
	m := newTestManager(t)

	_, err := NewMapper[noKey](m)
	assert.ErrorIs(t, err, ErrNoPartitionKey)

	_, err = NewMapper[int](m)
	assert.ErrorIs(t, err, ErrNotStruct)

	_, err = NewMapper[badTag](m)
	assert.Error(t, err)
}

func TestMapperValues(t *testing.T) {
	m := newTestManager(t)
	patients, err := NewMapper[Patient](m)
	require.NoError(t, err)

	id := uuid.New()
	recorded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	values, err := patients.values(&Patient{
		PatientID: id,
		Recorded:  recorded,
		Name:      "Alice",
		Gender:    GenderFemale,
		Notes:     "not stored",
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{gocql.UUID(id), recorded, "Alice", "FEMALE"}, values)

	_, err = patients.values(&Patient{PatientID: id, Gender: Gender(42)})
	assert.ErrorIs(t, err, codec.ErrUnknownValue)
}

func TestMapperScanTargets(t *testing.T) {
	m := newTestManager(t)
	patients, err := NewMapper[Patient](m)
	require.NoError(t, err)

	var p Patient
	dest, finish := patients.scanTargets(reflectValue(&p))
	require.Len(t, dest, 4)

	id := uuid.New()
	recorded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	*dest[0].(*gocql.UUID) = gocql.UUID(id)
	*dest[1].(*time.Time) = recorded
	*dest[2].(*string) = "Bob"
	*dest[3].(*string) = "MALE"

	require.NoError(t, finish())
	assert.Equal(t, Patient{PatientID: id, Recorded: recorded, Name: "Bob", Gender: GenderMale}, p)

	var broken Patient
	dest, finish = patients.scanTargets(reflectValue(&broken))
	*dest[3].(*string) = "OTHER"
	assert.ErrorIs(t, finish(), codec.ErrUnknownValue)
}

func TestMapperKeyCount(t *testing.T) {
	m := newTestManager(t)
	patients, err := NewMapper[Patient](m)
	require.NoError(t, err)

	_, err = patients.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrKeyCount)

	err = patients.Delete(context.Background())
	assert.ErrorIs(t, err, ErrKeyCount)
}
