package store

import "errors"

// ErrStaleVersion is returned by UpdateJobStage when the job's version no
// longer matches the one the caller read. The caller should re-fetch and
// retry; nothing was written.
var ErrStaleVersion = errors.New("job version is stale")

// ErrStageInUse is returned by DeactivateStage when jobs still occupy the
// stage. Stages referenced by any job can only be retired once vacated.
var ErrStageInUse = errors.New("stage is referenced by jobs")
