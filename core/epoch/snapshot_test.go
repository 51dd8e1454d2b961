package epoch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"firechain/core/rewards"
	"firechain/crypto"
)

func testAccount(b byte) crypto.AccountID {
	var id crypto.AccountID
	id[0] = 0x11
	id[crypto.AccountIDLength-1] = b
	return id
}

func sampleSnapshot(validator, n1, n2 crypto.AccountID) string {
	return fmt.Sprintf(`era: 7
validators:
  - account: %s
    points: 40
    own: "200"
    commission: "5%%"
    nominators:
      - account: %s
        stake: "100"
      - account: %s
        stake: "3_00"
  - account: 0x%s
    points: 10
    commission: "15000000"
`, validator, n1, n2, n1.Hex())
}

func TestParseSnapshot(t *testing.T) {
	validator, n1, n2 := testAccount(1), testAccount(2), testAccount(3)
	snapshot, err := Parse([]byte(sampleSnapshot(validator, n1, n2)))
	require.NoError(t, err)

	era, err := snapshot.ActiveEra()
	require.NoError(t, err)
	require.Equal(t, uint32(7), era)
	total, err := snapshot.TotalPoints(7)
	require.NoError(t, err)
	require.Equal(t, uint32(50), total)

	points, err := snapshot.PointsOf(validator, 7)
	require.NoError(t, err)
	require.Equal(t, uint32(40), points)
	points, err = snapshot.PointsOf(testAccount(99), 7)
	require.NoError(t, err)
	require.Zero(t, points)

	exposure, err := snapshot.ExposureOf(validator, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(200), exposure.Own.Uint64())
	require.Equal(t, uint64(600), exposure.Total.Uint64())
	require.Len(t, exposure.Others, 2)
	require.Equal(t, n2, exposure.Others[1].Who)

	commission, err := snapshot.CommissionOf(validator)
	require.NoError(t, err)
	require.Equal(t, uint32(5), commission.Percent())
	commission, err = snapshot.CommissionOf(n1)
	require.NoError(t, err)
	require.Equal(t, uint32(1), commission.Percent())

	ids, err := snapshot.CurrentValidators()
	require.NoError(t, err)
	require.Equal(t, []rewards.ValidatorID{rewards.ValidatorID(validator.String()), rewards.ValidatorID(n1.String())}, ids)
}

func TestSnapshotRejectsOtherEras(t *testing.T) {
	validator, n1, n2 := testAccount(1), testAccount(2), testAccount(3)
	snapshot, err := Parse([]byte(sampleSnapshot(validator, n1, n2)))
	require.NoError(t, err)

	_, err = snapshot.PointsOf(validator, 6)
	require.True(t, errors.Is(err, ErrEraMismatch))
	_, err = snapshot.ExposureOf(testAccount(42), 7)
	require.ErrorIs(t, err, ErrUnknownValidator)
}

func TestSnapshotTargets(t *testing.T) {
	validator, n1, n2 := testAccount(1), testAccount(2), testAccount(3)
	snapshot, err := Parse([]byte(sampleSnapshot(validator, n1, n2)))
	require.NoError(t, err)

	targets, ok, err := snapshot.TargetsOf(n2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []crypto.AccountID{validator}, targets)

	_, ok, err = snapshot.TargetsOf(testAccount(77))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseSnapshotErrors(t *testing.T) {
	a := testAccount(1)
	cases := map[string]string{
		"duplicate validator": fmt.Sprintf("era: 1\nvalidators:\n  - account: %s\n  - account: %s\n", a, a),
		"bad account":         "era: 1\nvalidators:\n  - account: nope\n",
		"bad commission":      fmt.Sprintf("era: 1\nvalidators:\n  - account: %s\n    commission: \"101%%\"\n", a),
		"total below sum":     fmt.Sprintf("era: 1\ntotal_points: 1\nvalidators:\n  - account: %s\n    points: 5\n", a),
		"unknown field":       "era: 1\nbogus: true\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadSnapshotFromDisk(t *testing.T) {
	validator, n1, n2 := testAccount(1), testAccount(2), testAccount(3)
	path := filepath.Join(t.TempDir(), "era.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSnapshot(validator, n1, n2)), 0o600))
	snapshot, err := Load(path)
	require.NoError(t, err)
	require.Len(t, snapshot.Validators, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
