// Package histogram holds the single-writer aggregates that metric
// buckets are drained into: a fixed-bound Histogram and a windowed
// Summary whose quantiles are computed with gonum.
package histogram
