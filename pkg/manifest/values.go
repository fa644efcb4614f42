package manifest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"

	perrors "github.com/harun/plugincheck/pkg/errors"
)

var (
	// displayNameRegex accepts one or more space separated word tokens
	displayNameRegex = regexp.MustCompile(`^\w+( \w+)*$`)

	// digestRegex validates a sha256 hex digest
	digestRegex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

	// commitRegex validates a full git commit hash
	commitRegex = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

	// archRegex validates the os/cpu target convention
	archRegex = regexp.MustCompile(`^\w+/\w+$`)

	idRegexes = map[IDStyle]*regexp.Regexp{
		IDStyleHyphen:     regexp.MustCompile(IDStyleHyphen.Pattern()),
		IDStyleUnderscore: regexp.MustCompile(IDStyleUnderscore.Pattern()),
	}
)

func schemaViolation(field, format string, args ...any) error {
	return perrors.New(
		perrors.CodeManifestSchemaInvalid,
		fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		perrors.Field(perrors.KeyField, field),
	)
}

// ParsePluginID validates id against the identifier grammar of style.
func ParsePluginID(field, id string, style IDStyle) (PluginID, error) {
	re, ok := idRegexes[style]
	if !ok {
		return "", schemaViolation(field, "unknown identifier style %q", style)
	}
	if !re.MatchString(id) {
		return "", schemaViolation(field, "invalid plugin id %q (must match %s)", id, style.Pattern())
	}
	return PluginID(id), nil
}

// ParseDisplayName validates a plugin display name.
func ParseDisplayName(field, name string) (DisplayName, error) {
	if !displayNameRegex.MatchString(name) {
		return "", schemaViolation(field, "invalid plugin name %q (must be space separated words)", name)
	}
	return DisplayName(name), nil
}

// ParsePluginKind accepts the canonical kind tokens. Snake case spellings
// are normalised, so "media_provider" parses as KindMediaProvider.
func ParsePluginKind(field, kind string) (PluginKind, error) {
	normalized := PluginKind(Kebab(kind))
	for _, k := range PluginKinds {
		if k == normalized {
			return k, nil
		}
	}
	return "", schemaViolation(field, "invalid plugin kind %q (must be one of %v)", kind, PluginKinds)
}

// ParseVersion parses a strict semantic version (no "v" prefix).
func ParseVersion(field, raw string) (Version, error) {
	sv, err := semver.StrictNewVersion(raw)
	if err != nil {
		return Version{}, schemaViolation(field, "invalid semantic version %q: %v", raw, err)
	}
	return Version{raw: raw, sv: sv}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(raw string) Version {
	v, err := ParseVersion("version", raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseDigest validates a sha256 digest.
func ParseDigest(field, digest string) (Digest, error) {
	if len(digest) != 64 {
		return "", schemaViolation(field, "sha256 digest must be exactly 64 characters, got %d", len(digest))
	}
	if !digestRegex.MatchString(digest) {
		return "", schemaViolation(field, "sha256 digest must be hexadecimal")
	}
	return Digest(digest), nil
}

// ParseCommitHash validates a full commit hash.
func ParseCommitHash(field, commit string) (CommitHash, error) {
	if len(commit) != 40 {
		return "", schemaViolation(field, "commit hash must be exactly 40 characters, got %d", len(commit))
	}
	if !commitRegex.MatchString(commit) {
		return "", schemaViolation(field, "commit hash must be hexadecimal")
	}
	return CommitHash(commit), nil
}

// ParseArch validates an os/cpu target.
func ParseArch(field, arch string) (Arch, error) {
	if !archRegex.MatchString(arch) {
		return "", schemaViolation(field, "invalid arch %q (must be os/cpu, e.g. linux/amd64)", arch)
	}
	return Arch(arch), nil
}

// ParsePackageURL validates an absolute http(s) URL.
func ParsePackageURL(field, raw string) (PackageURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", schemaViolation(field, "invalid url %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", schemaViolation(field, "invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", schemaViolation(field, "invalid url %q: missing host", raw)
	}
	return PackageURL(raw), nil
}

// Kebab lowercases s and joins its words with hyphens. Underscores, spaces
// and camelCase boundaries all separate words.
func Kebab(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		switch {
		case r == '_' || r == ' ' || r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteRune('-')
			}
		case unicode.IsUpper(r):
			if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "-") && !unicode.IsUpper(runes[i-1]) {
				b.WriteRune('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
