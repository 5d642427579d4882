package services

import "skillswap_server/models"

// Matcher computes mutual skill matches. The zero value implements the plain contract: every
// possessed skill counts. With VerifiedOnly set, only possessed skills whose verified flag is true
// count, on both sides, so the relation stays symmetric.
type Matcher struct {
	VerifiedOnly bool
}

// FindMatches returns the candidates that form a mutual match with requester, in input order.
// Candidates must be approved and cannot be the requester.
func FindMatches(requester models.Member, candidates []models.Member) []models.Member {
	return Matcher{}.Find(requester, candidates)
}

// Find is FindMatches with the matcher's options applied. It has no side effects.
func (mt Matcher) Find(requester models.Member, candidates []models.Member) []models.Member {
	matches := []models.Member{}
	if len(mt.offers(requester)) == 0 || len(requester.WantedSkills) == 0 {
		return matches
	}
	for _, c := range candidates {
		if !c.Approved || c.MemberID == requester.MemberID {
			continue
		}
		if mt.IsMutualMatch(requester, c) {
			matches = append(matches, c)
		}
	}
	return matches
}

// IsMutualMatch reports whether each side wants something the other offers, ignoring approval.
func (mt Matcher) IsMutualMatch(a, b models.Member) bool {
	return models.NewSkillSet(a.WantedSkills).Intersects(mt.offers(b)) &&
		models.NewSkillSet(b.WantedSkills).Intersects(mt.offers(a))
}

func (mt Matcher) offers(m models.Member) []string {
	if mt.VerifiedOnly {
		return m.VerifiedPossessed()
	}
	return m.PossessedSkills
}
