// Package regsync replicates container images between registries as a
// line-delimited JSON map job.
//
// Every input line names one image to copy; every input line yields
// exactly one output line carrying the same fields plus a success flag.
// A failed copy is reported in the output and never stops the stream.
// Malformed input stops the stream.
//
// Basic usage:
//
//	cfg := regsync.Config{Endpoint: "cr.example.com", Username: "u", Password: "p"}
//
//	// c implements both Copier and Authenticator, e.g. a skopeo wrapper
//	if err := regsync.Login(ctx, c, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
//	p := regsync.NewProcessor(c)
//	stats, err := p.Run(ctx, os.Stdin, os.Stdout)
//
// Input:
//
//	{"instance_id":"a","source_image_ref":"docker://src/img:1","dest_image_ref":"docker://dst/img:1"}
//
// Output:
//
//	{"instance_id":"a","source_image_ref":"docker://src/img:1","dest_image_ref":"docker://dst/img:1","success":true}
package regsync
