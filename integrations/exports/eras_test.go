package exports

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"firechain/core/rewards"
)

func sampleSummaries() []rewards.EraSummary {
	return []rewards.EraSummary{
		{
			Era:                3,
			TotalPoints:        20,
			Budget:             uint256.NewInt(100),
			ValidatorsCredited: uint256.NewInt(33),
			NominatorsCredited: uint256.NewInt(66),
			Validators:         1,
			ComputedAt:         1_700_000_000,
		},
		{Era: 4, Budget: uint256.NewInt(100)},
	}
}

func TestErasCSV(t *testing.T) {
	data, checksum, err := ErasCSV(sampleSummaries())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(checksum) != 64 {
		t.Fatalf("unexpected checksum %q", checksum)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(lines))
	}
	if lines[0] != "era,total_points,validators,budget,validators_credited,nominators_credited,dust,computed_at" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if lines[1] != "3,20,1,100,33,66,1,2023-11-14T22:13:20Z" {
		t.Fatalf("unexpected row: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "4,0,0,100,0,0,100,") {
		t.Fatalf("nil credits not rendered as zero: %s", lines[2])
	}
}

func TestErasJSONL(t *testing.T) {
	data, checksum, err := ErasJSONL(sampleSummaries())
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	output := string(data)
	if !strings.Contains(output, `"era":3`) || !strings.Contains(output, `"dust":"1"`) {
		t.Fatalf("unexpected payload: %s", output)
	}
	again, sum, _ := ErasJSONL(sampleSummaries())
	if string(again) != output || sum != checksum {
		t.Fatalf("export not deterministic")
	}
}
