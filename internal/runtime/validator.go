package runtime

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
)

// checkRespondent requires a name and a well-formed email address.
func checkRespondent(who domain.Respondent) (domain.Respondent, error) {
	name := strings.TrimSpace(who.Name)
	email := strings.TrimSpace(who.Email)
	if name == "" || email == "" {
		return domain.Respondent{}, domain.ErrRespondentDetails
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Respondent{}, fmt.Errorf("%w: malformed email %q", domain.ErrRespondentDetails, email)
	}
	return domain.Respondent{Name: name, Email: email}, nil
}

// checkResponse verifies that a response fits the question's answer kind.
func checkResponse(q domain.QuestionData, resp domain.Response) error {
	if resp.Empty() {
		return fmt.Errorf("%w: empty response", domain.ErrInvalidResponse)
	}

	switch q.AnswerKind {
	case domain.AnswerOpenEnded, "":
		if len(resp.SelectedRatings) > 0 {
			return fmt.Errorf("%w: open-ended question does not take ratings", domain.ErrInvalidResponse)
		}
		return nil
	case domain.AnswerRatingSingle:
		if len(resp.SelectedRatings) != 1 {
			return fmt.Errorf("%w: select exactly one rating", domain.ErrInvalidResponse)
		}
	case domain.AnswerRatingMulti:
		if len(resp.SelectedRatings) == 0 {
			return fmt.Errorf("%w: select at least one rating", domain.ErrInvalidResponse)
		}
	default:
		return fmt.Errorf("%w: unknown answer kind %q", domain.ErrInvalidResponse, q.AnswerKind)
	}

	if len(q.Options) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		allowed[o] = true
	}
	seen := make(map[string]bool, len(resp.SelectedRatings))
	for _, r := range resp.SelectedRatings {
		if !allowed[r] {
			return fmt.Errorf("%w: %q is not an option", domain.ErrInvalidResponse, r)
		}
		if seen[r] {
			return fmt.Errorf("%w: %q selected twice", domain.ErrInvalidResponse, r)
		}
		seen[r] = true
	}
	return nil
}
