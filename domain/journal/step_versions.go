package journal

import (
	"caseflow/bizerror"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/event"
	"caseflow/persistence"
	"caseflow/session"

	"github.com/fundwit/go-commons/types"
)

// StepVersion is a derived, read-only grouping of one completed cycle
// through a step: the cycle's sequence number, the event ids that
// occurred in it, and the timestamp that closed it.
type StepVersion struct {
	Version     int             `json:"version"`
	EventIds    []string        `json:"eventIds"`
	CompletedAt types.Timestamp `json:"completedAt"`
}

// EventOccurrence is one create/update entry of the chronological event
// history that consolidation runs over. Undo entries never appear here.
type EventOccurrence struct {
	EventId   string
	Timestamp types.Timestamp
}

var GetStepVersionsFunc = GetStepVersions

// GetStepVersions groups the instance's event history into completed
// cycles of the named step, newest first.
func GetStepVersions(instanceId types.ID, stepName string, s *session.Session) ([]StepVersion, error) {
	inst, err := instance.DetailInstanceFunc(instanceId, s)
	if err != nil {
		return nil, err
	}
	d, err := definition.FindDefinitionFunc(inst.Definition)
	if err != nil {
		return nil, err
	}
	step := d.Step(stepName)
	if step == nil {
		return nil, bizerror.ErrUnknownStep
	}

	history, err := loadEventHistory(instanceId, s)
	if err != nil {
		return nil, err
	}
	return ConsolidateStepVersions(step, history), nil
}

// loadEventHistory turns the instance's change records into the
// chronological create/update-only event history.
func loadEventHistory(instanceId types.ID, s *session.Session) ([]EventOccurrence, error) {
	var records []event.ChangeRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where("source_type = ? AND source_id = ?", "workflow_instance", instanceId).
		Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	var history []EventOccurrence
	for _, record := range records {
		for _, updated := range record.UpdatedEvents {
			if updated.NewTime == nil {
				continue // undo, not part of the history
			}
			history = append(history, EventOccurrence{EventId: updated.EventId, Timestamp: *updated.NewTime})
		}
	}
	return history, nil
}

// ConsolidateStepVersions walks the chronological history and cuts it
// into completed cycles of the given step. For a leaf step every
// qualifying occurrence is its own version. For sequential children all
// occurrences accumulate until the last child's end event arrives; for
// parallel children a cycle closes the moment every distinct child has
// contributed since the previous closure. A trailing incomplete cycle
// of either kind is discarded. Versions are returned newest first.
func ConsolidateStepVersions(step *definition.Step, history []EventOccurrence) []StepVersion {
	var versions []StepVersion

	if len(step.Children) == 0 {
		endIds := stringSet(step.EndCondition.GetAllEventIds())
		for _, occurrence := range history {
			if !endIds[occurrence.EventId] {
				continue
			}
			versions = append(versions, StepVersion{
				Version:     len(versions) + 1,
				EventIds:    []string{occurrence.EventId},
				CompletedAt: occurrence.Timestamp,
			})
		}
		return reverseVersions(versions)
	}

	childOf := map[string]int{}
	for i, child := range step.Children {
		for _, id := range childEventIds(child) {
			childOf[id] = i
		}
	}

	if step.Mode == definition.HierarchyParallel {
		var accumulated []string
		contributed := map[int]bool{}
		for _, occurrence := range history {
			childIdx, relevant := childOf[occurrence.EventId]
			if !relevant {
				continue
			}
			accumulated = append(accumulated, occurrence.EventId)
			contributed[childIdx] = true
			if len(contributed) == len(step.Children) {
				versions = append(versions, StepVersion{
					Version:     len(versions) + 1,
					EventIds:    dedup(accumulated),
					CompletedAt: occurrence.Timestamp,
				})
				accumulated = nil
				contributed = map[int]bool{}
			}
		}
		return reverseVersions(versions)
	}

	// sequential: the cycle closes on the last child's end event
	lastChild := step.Children[len(step.Children)-1]
	closingIds := stringSet(childEndEventIds(lastChild))
	var accumulated []string
	for _, occurrence := range history {
		if _, relevant := childOf[occurrence.EventId]; !relevant {
			continue
		}
		accumulated = append(accumulated, occurrence.EventId)
		if closingIds[occurrence.EventId] {
			versions = append(versions, StepVersion{
				Version:     len(versions) + 1,
				EventIds:    dedup(accumulated),
				CompletedAt: occurrence.Timestamp,
			})
			accumulated = nil
		}
	}
	return reverseVersions(versions)
}

// childEventIds collects every event id mentioned by the child's own
// conditions, so any of the child's events counts as a contribution.
func childEventIds(child *definition.Step) []string {
	ids := append(child.StartCondition.GetAllEventIds(), child.EndCondition.GetAllEventIds()...)
	for _, nested := range child.Children {
		ids = append(ids, childEventIds(nested)...)
	}
	return ids
}

func childEndEventIds(child *definition.Step) []string {
	if child.EndCondition != nil {
		return child.EndCondition.GetAllEventIds()
	}
	var ids []string
	for _, nested := range child.Children {
		ids = append(ids, childEndEventIds(nested)...)
	}
	return ids
}

func stringSet(values []string) map[string]bool {
	set := map[string]bool{}
	for _, v := range values {
		set[v] = true
	}
	return set
}

func dedup(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func reverseVersions(versions []StepVersion) []StepVersion {
	for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
		versions[i], versions[j] = versions[j], versions[i]
	}
	return versions
}
