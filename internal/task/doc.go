// Package task owns task records and their execution.
//
// Queue holds every task submitted during the process lifetime, enforces
// the queued -> running -> completed|failed state machine and mirrors each
// record to a TaskStore. WorkerPool runs jobs on a fixed number of
// goroutines with a bounded backlog. Dispatcher ties them together: it
// admits submissions, schedules them on the pool and runs the owning
// agent's capability, publishing state changes as it goes.
package task
