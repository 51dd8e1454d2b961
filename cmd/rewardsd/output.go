package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/holiman/uint256"

	"firechain/core/rewards"
	"firechain/crypto"
	"firechain/integrations/journal"
)

type summaryView struct {
	Era                uint32 `json:"era"`
	TotalPoints        uint32 `json:"totalPoints"`
	Validators         uint32 `json:"validators"`
	Budget             string `json:"budget"`
	ValidatorsCredited string `json:"validatorsCredited"`
	NominatorsCredited string `json:"nominatorsCredited"`
	Credited           string `json:"credited"`
	Dust               string `json:"dust"`
	ComputedAt         string `json:"computedAt"`
}

type payoutView struct {
	Recipient string `json:"recipient"`
	Role      string `json:"role"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason,omitempty"`
}

type settlementView struct {
	Validator string       `json:"validator"`
	Paid      []payoutView `json:"paid"`
	Unpaid    []payoutView `json:"unpaid,omitempty"`
	PaidTotal string       `json:"paidTotal"`
}

type reportView struct {
	Summary     *summaryView     `json:"summary,omitempty"`
	Settlements []settlementView `json:"settlements"`
	Dropped     []string         `json:"dropped,omitempty"`
}

type journalView struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func viewSummary(s *rewards.EraSummary) *summaryView {
	if s == nil {
		return nil
	}
	c := s.Clone()
	return &summaryView{
		Era:                c.Era,
		TotalPoints:        c.TotalPoints,
		Validators:         c.Validators,
		Budget:             c.Budget.Dec(),
		ValidatorsCredited: c.ValidatorsCredited.Dec(),
		NominatorsCredited: c.NominatorsCredited.Dec(),
		Credited:           c.Credited().Dec(),
		Dust:               c.Dust().Dec(),
		ComputedAt:         time.Unix(int64(c.ComputedAt), 0).UTC().Format(time.RFC3339),
	}
}

func viewPayouts(payouts []rewards.Payout) []payoutView {
	out := make([]payoutView, 0, len(payouts))
	for _, p := range payouts {
		view := payoutView{Recipient: p.Recipient.String(), Role: string(p.Role), Amount: dec(p.Amount)}
		if p.Err != nil {
			view.Reason = p.Err.Error()
		}
		out = append(out, view)
	}
	return out
}

func viewSettlement(s *rewards.Settlement) settlementView {
	return settlementView{
		Validator: s.Validator.String(),
		Paid:      viewPayouts(s.Paid),
		Unpaid:    viewPayouts(s.Unpaid),
		PaidTotal: s.PaidTotal().Dec(),
	}
}

func viewReport(r *rewards.EraReport) reportView {
	view := reportView{Summary: viewSummary(r.Summary), Settlements: []settlementView{}}
	for _, s := range r.Settlements {
		view.Settlements = append(view.Settlements, viewSettlement(s))
	}
	view.Dropped = accountStrings(r.Dropped)
	return view
}

func viewJournal(entries []journal.Entry) ([]journalView, error) {
	out := make([]journalView, 0, len(entries))
	for _, e := range entries {
		attrs := map[string]string{}
		if e.Attributes != "" {
			if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
				return nil, err
			}
		}
		out = append(out, journalView{
			Seq:        e.Seq,
			Type:       e.Type,
			Subject:    e.Subject,
			Attributes: attrs,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out, nil
}

func accountStrings(accounts []crypto.AccountID) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.String())
	}
	return out
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
