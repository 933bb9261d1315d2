//go:build !adapters_sqs
// +build !adapters_sqs

// Package sqspublisher publishes tool call events to AWS SQS.
// This stub is built when the adapters_sqs build tag is not enabled so that
// editors and linters can still recognize the package and avoid "no packages
// found for open file" errors.
package sqspublisher

const _adapterDisabled = true
