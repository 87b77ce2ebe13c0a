// Package requirements provides the one-shot readiness audit behind
// "coursecast requirements".
//
// Core requirements (configuration, database, data, storage, upload and log
// directories) must pass for the system to run at all. Optional requirements
// come from the capability probe: without them uploads still work but are
// served as raw files instead of HLS streams.
package requirements
