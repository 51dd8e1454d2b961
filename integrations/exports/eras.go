package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"firechain/core/rewards"
)

var csvHeader = []string{"era", "total_points", "validators", "budget", "validators_credited", "nominators_credited", "dust", "computed_at"}

type eraRecord struct {
	Era                uint32 `json:"era"`
	TotalPoints        uint32 `json:"total_points"`
	Validators         uint32 `json:"validators"`
	Budget             string `json:"budget"`
	ValidatorsCredited string `json:"validators_credited"`
	NominatorsCredited string `json:"nominators_credited"`
	Dust               string `json:"dust"`
	ComputedAt         string `json:"computed_at"`
}

func recordOf(summary rewards.EraSummary) eraRecord {
	summary = summary.Clone()
	return eraRecord{
		Era:                summary.Era,
		TotalPoints:        summary.TotalPoints,
		Validators:         summary.Validators,
		Budget:             summary.Budget.Dec(),
		ValidatorsCredited: summary.ValidatorsCredited.Dec(),
		NominatorsCredited: summary.NominatorsCredited.Dec(),
		Dust:               summary.Dust().Dec(),
		ComputedAt:         time.Unix(int64(summary.ComputedAt), 0).UTC().Format(time.RFC3339),
	}
}

// ErasCSV renders era summaries as CSV and returns the payload with its
// SHA-256 checksum.
func ErasCSV(summaries []rewards.EraSummary) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, summary := range summaries {
		r := recordOf(summary)
		row := []string{
			strconv.FormatUint(uint64(r.Era), 10),
			strconv.FormatUint(uint64(r.TotalPoints), 10),
			strconv.FormatUint(uint64(r.Validators), 10),
			r.Budget,
			r.ValidatorsCredited,
			r.NominatorsCredited,
			r.Dust,
			r.ComputedAt,
		}
		if err := writer.Write(row); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

// ErasJSONL renders era summaries as JSON Lines with a checksum.
func ErasJSONL(summaries []rewards.EraSummary) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, summary := range summaries {
		if err := encoder.Encode(recordOf(summary)); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}

func checksummed(data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
