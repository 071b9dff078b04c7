package bus

import "testing"

func TestLifecycleSubject(t *testing.T) {
	if got := LifecycleSubject(SubjectBatchDone); got != "trim.batch.done.lifecycle" {
		t.Fatalf("LifecycleSubject = %q", got)
	}
}
