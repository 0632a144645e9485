package models

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ThreadTag is the fixed vocabulary a node or connection can belong to.
type ThreadTag string

const (
	ThreadMusic     ThreadTag = "music"
	ThreadMovement  ThreadTag = "movement"
	ThreadQuestions ThreadTag = "questions"
)

var vocabulary = mapset.NewSet(ThreadMusic, ThreadMovement, ThreadQuestions)

// Valid reports whether t belongs to the thread vocabulary.
func (t ThreadTag) Valid() bool {
	return vocabulary.Contains(t)
}

// ThreadSet returns the membership set of tags. Duplicates collapse; display
// order is kept by the original slice.
func ThreadSet(tags []ThreadTag) mapset.Set[ThreadTag] {
	return mapset.NewThreadUnsafeSet(tags...)
}

// UnknownThreads returns the tags of tags outside the vocabulary, in input order
// and without duplicates.
func UnknownThreads(tags []ThreadTag) []ThreadTag {
	seen := mapset.NewThreadUnsafeSet[ThreadTag]()
	var out []ThreadTag
	for _, t := range tags {
		if t.Valid() || seen.Contains(t) {
			continue
		}
		seen.Add(t)
		out = append(out, t)
	}
	return out
}
