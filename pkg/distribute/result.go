package distribute

// Item is one named configuration value to distribute. Secret items are
// write-only on the backing store and are never verified by read-back.
type Item struct {
	Name   string
	Value  string
	Secret bool
}

// RepoFailure records which items failed on one repository.
type RepoFailure struct {
	Repo        string
	FailedItems []string
}

// Summary aggregates per-repository outcomes across the main distribution
// pass and the final verification pass. Repositories keep their input order
// inside each set so reports are deterministic. Entries move from Failed to
// Succeeded during the final pass, never the other way.
type Summary struct {
	Succeeded []string
	Failed    []RepoFailure
}

// Total is the number of repositories attempted.
func (s *Summary) Total() int {
	return len(s.Succeeded) + len(s.Failed)
}

// OK reports whether every repository succeeded.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0
}

// FailedRepos lists the identifiers of failed repositories.
func (s *Summary) FailedRepos() []string {
	repos := make([]string, 0, len(s.Failed))
	for _, f := range s.Failed {
		repos = append(repos, f.Repo)
	}
	return repos
}

func (s *Summary) record(repo string, failedItems []string) {
	if len(failedItems) == 0 {
		s.Succeeded = append(s.Succeeded, repo)
		return
	}
	s.Failed = append(s.Failed, RepoFailure{Repo: repo, FailedItems: failedItems})
}

// promote moves one repository from the failed set to the succeeded set.
func (s *Summary) promote(repo string) {
	kept := s.Failed[:0]
	for _, f := range s.Failed {
		if f.Repo == repo {
			s.Succeeded = append(s.Succeeded, repo)
			continue
		}
		kept = append(kept, f)
	}
	s.Failed = kept
}
