// Package httpstages provides pipeline steps that fetch corpus archives over
// HTTP.
//
// Download writes the response body beside the destination and renames it
// into place once complete, so an interrupted transfer never leaves a file
// that looks finished. ExpectSHA256 verifies the result.
//
//	steps := []pipeline.Step{
//	    httpstages.Download(nil, "https://example.com/csj.tar.gz", "corpus/csj.tar.gz"),
//	    httpstages.ExpectSHA256("corpus/csj.tar.gz", sum),
//	}
package httpstages
