package extbuilder

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestParseS3URL(t *testing.T) {
	c := qt.New(t)

	bucket, prefix, err := ParseS3URL("s3://race-artifacts/ext/jel2/")
	c.Assert(err, qt.IsNil)
	c.Assert(bucket, qt.Equals, "race-artifacts")
	c.Assert(prefix, qt.Equals, "ext/jel2")

	bucket, prefix, err = ParseS3URL("s3://race-artifacts")
	c.Assert(err, qt.IsNil)
	c.Assert(bucket, qt.Equals, "race-artifacts")
	c.Assert(prefix, qt.Equals, "")

	_, _, err = ParseS3URL("https://example.com/x")
	c.Assert(err, qt.ErrorMatches, `Invalid publish URL https://example.com/x, only s3:// is supported`)

	_, _, err = ParseS3URL("s3:///x")
	c.Assert(err, qt.ErrorMatches, `Publish URL s3:///x is missing the bucket name`)
}

func TestPublish_DryRun(t *testing.T) {
	c := qt.New(t)
	b, rec := newTestBuilder(c, "linux-x86_64")
	b.Args.DryRun = true

	artifact, err := b.CreatePackage(testCtx())
	c.Assert(err, qt.IsNil)
	c.Assert(b.Publish(testCtx(), "s3://bucket/prefix", artifact), qt.IsNil)
	c.Assert(rec.Commands, qt.HasLen, 0)

	c.Assert(b.Publish(testCtx(), "ftp://bucket/prefix", artifact), qt.ErrorMatches, `Invalid publish URL .*`)
}
