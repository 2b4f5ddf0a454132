package backend

// JSON schemas for each operation's option bag.

const mergeSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "page_ranges": {
      "type": "array",
      "items": {"type": "string", "pattern": "^\\s*(\\d+\\s*(-\\s*\\d+)?\\s*(,\\s*\\d+\\s*(-\\s*\\d+)?\\s*)*)?$"}
    },
    "divider_page": {"type": "boolean"},
    "page_order": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "integer", "minimum": 1}
    }
  }
}`

const splitSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "span": {"type": "integer", "minimum": 1}
  }
}`

const pdfToWordSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "page_breaks": {"type": "boolean"}
  }
}`

const pdfToImagesSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "format": {"enum": ["png", "jpeg"]},
    "quality": {"enum": ["web", "print", "high"]},
    "dpi": {"type": "integer", "minimum": 36, "maximum": 600}
  }
}`

const imageToPDFSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "jpeg_quality": {"type": "integer", "minimum": 1, "maximum": 100}
  }
}`

const resizeSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["width", "height"],
  "properties": {
    "width": {"type": "integer", "minimum": 1, "maximum": 20000},
    "height": {"type": "integer", "minimum": 1, "maximum": 20000},
    "maintain_aspect": {"type": "boolean"},
    "jpeg_quality": {"type": "integer", "minimum": 1, "maximum": 100}
  }
}`

const formatConvertSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["target_format"],
  "properties": {
    "target_format": {"type": "string", "pattern": "^(?i)(png|jpe?g|gif|bmp|tiff?)$"},
    "angle": {"type": "number", "minimum": -360, "maximum": 360},
    "jpeg_quality": {"type": "integer", "minimum": 1, "maximum": 100}
  }
}`

const filterSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["filter"],
  "properties": {
    "filter": {"enum": [
      "blur", "sharpen", "smooth", "detail", "edge_enhance", "emboss", "contour",
      "grayscale", "sepia", "brightness_up", "brightness_down", "contrast_up", "contrast_down"
    ]},
    "jpeg_quality": {"type": "integer", "minimum": 1, "maximum": 100}
  }
}`
