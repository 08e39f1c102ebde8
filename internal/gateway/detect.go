package gateway

import (
	"context"
	"strings"
)

// DetectDialect picks the CLI dialect of an already-connected router.
//
// Detection strategy:
//  1. Check SSH banner for "ROSSSH" or "MikroTik" -> mikrotik
//  2. Try `/system identity print` -- if it answers with a name -> mikrotik
//  3. Try `cat /etc/version` -- if it mentions EdgeOS or ubnt -> edgeos
//  4. Default to omada, the CLI of the routers this tool was built for
func DetectDialect(ctx context.Context, banner string, run CommandRunner) Dialect {
	upper := strings.ToUpper(banner)
	if strings.Contains(upper, "ROSSSH") || strings.Contains(upper, "MIKROTIK") {
		return dialects[DialectMikroTik]
	}

	if out, err := run(ctx, "/system identity print"); err == nil {
		out = strings.TrimSpace(out)
		if strings.Contains(out, "name:") {
			return dialects[DialectMikroTik]
		}
	}

	if out, err := run(ctx, "cat /etc/version"); err == nil {
		lower := strings.ToLower(out)
		if strings.Contains(lower, "edgeos") || strings.Contains(lower, "ubnt") || strings.Contains(lower, "ubiquiti") {
			return dialects[DialectEdgeOS]
		}
	}

	return dialects[DialectOmada]
}
