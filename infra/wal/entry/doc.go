// Package entry is the ingress journal: every sample batch accepted by
// the service is framed, checksummed and appended here before it is
// pushed into a bucket, so aggregates can be rebuilt after a restart.
//
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian,
// CRC-32 (IEEE) over header and payload. Sample payloads are zstd
// compressed.
package entry
