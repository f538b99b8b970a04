package chama

import (
	"encoding/json"
	"math/big"
	"strconv"
)

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Record is one chama as stored by the factory contract.
type Record struct {
	ID              int64
	Name            string
	Owner           string
	MemberCount     int64
	ContributionWei *big.Int
	Frequency       int64
	TotalFundsWei   *big.Int
	Active          bool
}

// ContributionETH is the per-member contribution in ETH with four decimals.
func (r Record) ContributionETH() string { return FormatETH(r.ContributionWei) }

func (r Record) TotalFundsETH() string { return FormatETH(r.TotalFundsWei) }

// FormatETH renders a wei amount in ETH rounded to four decimals.
func FormatETH(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return new(big.Rat).SetFrac(wei, weiPerEth).FloatString(4)
}

func ethFloat(wei *big.Int) float64 {
	f, _ := strconv.ParseFloat(FormatETH(wei), 64)
	return f
}

func weiString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return wei.String()
}

type recordJSON struct {
	ID                    int64   `json:"id"`
	Name                  string  `json:"name"`
	Owner                 string  `json:"owner"`
	Members               int64   `json:"members"`
	Active                bool    `json:"active"`
	ContributionWei       string  `json:"contributionWei"`
	ContributionEth       float64 `json:"contributionEth"`
	TotalFundsWei         string  `json:"totalFundsWei"`
	TotalFundsEth         float64 `json:"totalFundsEth"`
	ContributionFrequency int64   `json:"contributionFrequency"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:                    r.ID,
		Name:                  r.Name,
		Owner:                 r.Owner,
		Members:               r.MemberCount,
		Active:                r.Active,
		ContributionWei:       weiString(r.ContributionWei),
		ContributionEth:       ethFloat(r.ContributionWei),
		TotalFundsWei:         weiString(r.TotalFundsWei),
		TotalFundsEth:         ethFloat(r.TotalFundsWei),
		ContributionFrequency: r.Frequency,
	})
}
