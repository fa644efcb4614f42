package manifest

import "strings"

// idPatternPlaceholder is replaced with the generation's identifier pattern.
const idPatternPlaceholder = "{{ID_PATTERN}}"

// RootManifestSchema is the JSON Schema for manifests/plugins.toml
const RootManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["plugins"],
  "properties": {
    "plugins": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "kind"],
        "properties": {
          "id": {
            "type": "string",
            "pattern": "{{ID_PATTERN}}",
            "description": "Unique plugin identifier"
          },
          "name": {
            "type": "string",
            "pattern": "^\\w+( \\w+)*$",
            "description": "Human-readable plugin name"
          },
          "kind": {
            "type": "string",
            "enum": ["app", "media-provider", "media_provider", "transcriber"]
          }
        }
      }
    }
  }
}`

// PluginManifestSchema is the JSON Schema for <plugin folder>/plugin.toml
const PluginManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "versions"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "{{ID_PATTERN}}"
    },
    "versions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["semver"],
        "properties": {
          "semver": {
            "type": "string",
            "minLength": 1
          }
        }
      }
    }
  }
}`

// PluginVersionManifestSchema is the JSON Schema for <version folder>/version.toml
const PluginVersionManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "semver", "packages"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "{{ID_PATTERN}}"
    },
    "semver": {
      "type": "string",
      "minLength": 1
    },
    "contract_semver": {
      "type": "string",
      "minLength": 1,
      "description": "Contract version this plugin version conforms to"
    },
    "packages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["url", "sha256", "arch"],
        "properties": {
          "url": {
            "type": "string",
            "format": "uri"
          },
          "sha256": {
            "type": "string",
            "minLength": 64,
            "maxLength": 64
          },
          "arch": {
            "type": "string",
            "pattern": "^\\w+/\\w+$"
          }
        }
      }
    }
  }
}`

// ContractManifestSchema is the JSON Schema for contracts/<kind>.toml
const ContractManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "versions"],
  "properties": {
    "id": {
      "type": "string",
      "enum": ["app", "media-provider", "media_provider", "transcriber"]
    },
    "versions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["semver", "commit"],
        "properties": {
          "semver": {
            "type": "string",
            "minLength": 1
          },
          "commit": {
            "type": "string",
            "minLength": 40,
            "maxLength": 40
          }
        }
      }
    }
  }
}`

// schemaFor returns the schema text of shape with the identifier pattern
// of style filled in.
func schemaFor(shape Shape, style IDStyle) string {
	var text string
	switch shape {
	case ShapeRoot:
		text = RootManifestSchema
	case ShapePlugin:
		text = PluginManifestSchema
	case ShapeVersion:
		text = PluginVersionManifestSchema
	case ShapeContract:
		text = ContractManifestSchema
	default:
		return ""
	}
	return strings.ReplaceAll(text, idPatternPlaceholder, style.Pattern())
}
