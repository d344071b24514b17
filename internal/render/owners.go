package render

import (
	"regexp"
	"strconv"

	"github.com/kiranshivaraju/triage/internal/analysis"
	"github.com/kiranshivaraju/triage/pkg/models"
)

// DefaultOwner is assigned to clusters no test of which can be attributed.
const DefaultOwner = "unowned"

// recentWindow is how far before the newest build a build counts as recent.
const recentWindow = 24 * 60 * 60

var reSigLabel = regexp.MustCompile(`\[sig-([^\]]*)\]`)

type ownerCount struct {
	owner  string
	recent int
	older  int
}

// AnnotateOwners sets the Owner of every rendered cluster. Each test votes
// for the owner named by its "[sig-X]" label or, failing that, the owner
// whose prefix matches its normalized name. Votes are weighted by builds,
// split into builds started within a day of the newest build and older ones;
// the owner with the highest (recent, older) pair wins, ties going to the
// greater name. Clusters without votes get defaultOwner.
func AnnotateOwners(out *models.Output, builds models.Builds, owners models.Owners, defaultOwner string) {
	if defaultOwner == "" {
		defaultOwner = DefaultOwner
	}

	var newest int64
	byJob := make(map[string]map[string]models.Build)
	for _, b := range builds {
		if b.Started > newest {
			newest = b.Started
		}
		numbers, ok := byJob[b.Job]
		if !ok {
			numbers = make(map[string]models.Build)
			byJob[b.Job] = numbers
		}
		numbers[strconv.Itoa(b.Number)] = b
	}
	cutoff := newest - recentWindow

	for i := range out.Clustered {
		c := &out.Clustered[i]
		counts := make(map[string]*ownerCount)

		for _, test := range c.Tests {
			owner := ""
			if m := reSigLabel.FindStringSubmatch(test.Name); m != nil {
				owner = m[1]
			} else if o, ok := owners.Match(analysis.NormalizeTestName(test.Name)); ok {
				owner = o
			} else {
				continue
			}

			oc, ok := counts[owner]
			if !ok {
				oc = &ownerCount{owner: owner}
				counts[owner] = oc
			}
			for _, job := range test.Jobs {
				// Presubmit builds of one job live under many directories, so
				// builds are found by job and number rather than by path.
				numbers := byJob[job.Name]
				for _, number := range job.Builds {
					b, ok := numbers[number]
					if !ok {
						continue
					}
					if b.Started > cutoff {
						oc.recent++
					} else {
						oc.older++
					}
				}
			}
		}

		c.Owner = defaultOwner
		var winner *ownerCount
		for _, oc := range counts {
			if winner == nil || ownerBeats(oc, winner) {
				winner = oc
			}
		}
		if winner != nil {
			c.Owner = winner.owner
		}
	}
}

func ownerBeats(a, b *ownerCount) bool {
	if a.recent != b.recent {
		return a.recent > b.recent
	}
	if a.older != b.older {
		return a.older > b.older
	}
	return a.owner > b.owner
}
