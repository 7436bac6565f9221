// Package e2e runs the report-processing pipeline against staged fixtures
// and compares its output with a recorded results file. The test is built
// with -tags e2e and only runs when E2E=1.
package e2e
