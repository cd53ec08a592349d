package schedule

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type ReasonCode string

const (
	ReasonPrereqSatisfied   ReasonCode = "PREREQ_SATISFIED"
	ReasonHighExamWeight    ReasonCode = "HIGH_EXAM_WEIGHT"
	ReasonExamProximity     ReasonCode = "EXAM_PROXIMITY"
	ReasonLoadBalanced      ReasonCode = "LOAD_BALANCED"
	ReasonMissedCarryover   ReasonCode = "MISSED_CARRYOVER"
	ReasonPriorityMode      ReasonCode = "PRIORITY_MODE"
	ReasonSplitContinuation ReasonCode = "SPLIT_CONTINUATION"
)

type WarningCode string

const (
	WarnOverloaded         WarningCode = "OVERLOADED"
	WarnPriorityMode       WarningCode = "PRIORITY_MODE"
	WarnPartialCoverage    WarningCode = "PARTIAL_COVERAGE"
	WarnTopicsDropped      WarningCode = "TOPICS_DROPPED"
	WarnInvalidTopic       WarningCode = "INVALID_TOPIC"
	WarnCycleDetected      WarningCode = "CYCLE_DETECTED"
	WarnUnknownPrereq      WarningCode = "UNKNOWN_PREREQUISITE"
	WarnExamPassed         WarningCode = "EXAM_PASSED"
	WarnPrereqChainTooLong WarningCode = "PREREQ_CHAIN_TOO_LONG"
	WarnNoStudyDays        WarningCode = "NO_STUDY_DAYS"
	WarnUnrecoverable      WarningCode = "UNRECOVERABLE_MISSED_HOURS"
)

// Warning is a non-fatal condition returned alongside a best-effort result.
type Warning struct {
	Code     WarningCode `json:"code"`
	Message  string      `json:"message"`
	TopicID  string      `json:"topic_id,omitempty"`
	CourseID string      `json:"course_id,omitempty"`
}

// ValidationError reports a malformed topic. The topic is excluded from the run.
type ValidationError struct {
	TopicID string
	Fields  []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("topic %s: invalid %s", e.TopicID, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("topic %s: %s", e.TopicID, e.Reason)
}

// NoHorizonError means there is nothing to schedule: no active courses or topics,
// or every exam has already passed.
type NoHorizonError struct {
	Reason string
}

func (e *NoHorizonError) Error() string {
	return "nothing to plan: " + e.Reason
}

func IsNoHorizon(err error) bool {
	_, ok := errors.Cause(err).(*NoHorizonError)
	return ok
}

func warningFromValidation(err *ValidationError, courseID string) Warning {
	return Warning{Code: WarnInvalidTopic, Message: err.Error(), TopicID: err.TopicID, CourseID: courseID}
}
