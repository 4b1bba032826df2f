package debugphi

// configSchema is the JSON schema for the Phi QA debug task
// configuration. It is registered alongside the factory so workflow
// configs can be validated before any task is created.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Phi QA debug task configuration",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "axis": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "bins": {"type": "integer", "minimum": 1},
        "min": {"type": "number"},
        "max": {"type": "number"}
      },
      "required": ["bins", "min", "max"]
    }
  },
  "properties": {
    "phi": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "pdg_code": {"type": "integer"},
        "cut": {"type": "integer", "minimum": 0},
        "fit_var_bins": {"$ref": "#/definitions/axis"},
        "fit_var_pt_bins": {"$ref": "#/definitions/axis"}
      }
    },
    "child": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "pdg_code_pos": {"type": "integer"},
        "pdg_code_neg": {"type": "integer"},
        "cut_pos": {"type": "integer", "minimum": 0},
        "cut_neg": {"type": "integer", "minimum": 0},
        "pid_nsigma_max_pos": {"type": "number", "minimum": 0},
        "pid_nsigma_max_neg": {"type": "number", "minimum": 0},
        "index_pos": {"type": "integer", "minimum": 0},
        "index_neg": {"type": "integer", "minimum": 0},
        "pid_nsigma_max": {
          "type": "array",
          "items": {"type": "number", "minimum": 0}
        },
        "n_species": {"type": "integer", "minimum": 1},
        "fit_var_bins": {"$ref": "#/definitions/axis"},
        "fit_var_pt_bins": {"$ref": "#/definitions/axis"}
      }
    },
    "enable_selection_cuts": {"type": "boolean"},
    "enable_pid_cuts": {"type": "boolean"}
  }
}`
