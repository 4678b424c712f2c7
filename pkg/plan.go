package dupeprune

import "slices"

// DeletionPlan names the file kept from a duplicate group and the files to
// remove. Victims never include a reference file, and when the group has a
// reference file the survivor is one.
type DeletionPlan struct {
	Group    DuplicateGroup `json:"group" yaml:"group"`
	Survivor FileRecord     `json:"survivor" yaml:"survivor"`
	Victims  []FileRecord   `json:"victims" yaml:"victims"`
}

// ReclaimableBytes is the space freed if every victim is deleted
func (p DeletionPlan) ReclaimableBytes() int64 {
	return int64(len(p.Victims)) * p.Group.Size
}

// PlanGroup chooses the survivor and victims for one duplicate group:
//   - with reference files present, the survivor is the reference file with
//     the smallest path, every reference file is kept, every search file is a
//     victim;
//   - otherwise the survivor is the smallest path and every other file is a
//     victim.
//
// A group whose members are all reference files yields a plan with no
// victims. The result depends only on paths and root kinds.
func PlanGroup(group DuplicateGroup) DeletionPlan {
	members := slices.Clone(group.Records)
	sortRecords(members)

	plan := DeletionPlan{Group: group, Victims: []FileRecord{}}

	refIdx := slices.IndexFunc(members, FileRecord.IsReference)
	if refIdx >= 0 {
		plan.Survivor = members[refIdx]
		for _, m := range members {
			if !m.IsReference() {
				plan.Victims = append(plan.Victims, m)
			}
		}
	} else if len(members) > 0 {
		plan.Survivor = members[0]
		plan.Victims = append(plan.Victims, members[1:]...)
	}

	DebugLog(DebugPlan, "keep %s, %d victims", plan.Survivor.Path, len(plan.Victims))
	return plan
}

// PlanAll plans every group, preserving group order
func PlanAll(groups []DuplicateGroup) []DeletionPlan {
	plans := make([]DeletionPlan, 0, len(groups))
	for _, g := range groups {
		plans = append(plans, PlanGroup(g))
	}
	return plans
}
