// Package loadtest contains the virtual-user runtime of surge.
//
// A Workload declares an optional Setup, a required Default iteration
// function and an optional Teardown. Virtual users (VU) run Default in a
// loop; inside an iteration workload code uses the VU to issue requests,
// record checks, nest groups and abort the iteration with Fail.
//
// A Pool owns the running VUs and scales them to a target count. Stage
// scheduling lives in the executor package and run orchestration in the
// engine package.
package loadtest
