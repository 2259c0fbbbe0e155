package password

import (
	"github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/campaignly/auth-service/internal/utils"
)

// MinScore is the zxcvbn score (0-4) a password must reach.
const MinScore = 3

// Hasher wraps bcrypt with a configurable cost.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// StrengthResult reports the zxcvbn verdict for a candidate password.
type StrengthResult struct {
	IsStrong  bool   `json:"isStrong"`
	Score     int    `json:"score"`
	CrackTime string `json:"estimatedCrackTime"`
}

// CheckStrength scores a password with the user's own identifying fields as
// penalty inputs, so "Ivan1985!" does not pass for a user named Ivan.
func CheckStrength(password string, userInputs ...string) StrengthResult {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in != "" {
			inputs = append(inputs, in)
		}
	}
	res := zxcvbn.PasswordStrength(password, inputs)
	return StrengthResult{
		IsStrong:  res.Score >= MinScore,
		Score:     res.Score,
		CrackTime: res.CrackTimeDisplay,
	}
}

const (
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	digits    = "0123456789"
	special   = "!@#$%^&*()_+~`|}{[]:;?><,./-="
)

// Generate returns a random password of the given length containing at least
// one character from each class. Used for auto-registered accounts; the
// plaintext is returned to the caller exactly once.
func Generate(length int) string {
	if length < 4 {
		length = 4
	}
	all := uppercase + lowercase + digits + special

	out := make([]byte, 0, length)
	out = append(out,
		uppercase[utils.RandomInt(len(uppercase))],
		lowercase[utils.RandomInt(len(lowercase))],
		digits[utils.RandomInt(len(digits))],
		special[utils.RandomInt(len(special))],
	)
	for i := 4; i < length; i++ {
		out = append(out, all[utils.RandomInt(len(all))])
	}

	// Fisher-Yates so the mandatory classes are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j := utils.RandomInt(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
