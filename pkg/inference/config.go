package inference

// Config describes the model file and its declared input contract.
type Config struct {
	// ModelPath is the classifier file (.onnx, .tflite, .pb).
	ModelPath string `yaml:"model_path" json:"model_path" mapstructure:"model_path"`

	// Width, Height and Channels are the fixed input dimensions.
	Width    int `yaml:"width" json:"width" mapstructure:"width"`
	Height   int `yaml:"height" json:"height" mapstructure:"height"`
	Channels int `yaml:"channels" json:"channels" mapstructure:"channels"`

	// DType selects the integer or floating input domain.
	DType DType `yaml:"dtype" json:"dtype" mapstructure:"dtype"`

	// Layout is the blob memory order.
	Layout Layout `yaml:"layout" json:"layout" mapstructure:"layout"`

	// ChannelOrder is the colour order the model was trained on.
	ChannelOrder ChannelOrder `yaml:"channel_order" json:"channel_order" mapstructure:"channel_order"`

	// Normalization names a preset applied in the float32 domain.
	Normalization string `yaml:"normalization" json:"normalization" mapstructure:"normalization"`

	// Backend and Target select the OpenCV DNN backend ("default", "cpu").
	Backend string `yaml:"backend" json:"backend" mapstructure:"backend"`
	Target  string `yaml:"target" json:"target" mapstructure:"target"`
}

// DefaultConfig returns the MobileNetV3 224x224 waste classifier settings.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/model.onnx",
		Width:         224,
		Height:        224,
		Channels:      3,
		DType:         DTypeFloat32,
		Layout:        LayoutNHWC,
		ChannelOrder:  ChannelsBGR,
		Normalization: NormMobileNetV3,
		Backend:       "default",
		Target:        "cpu",
	}
}

// Contract builds the declared input contract. NumClasses is left at zero;
// engines fill it in once the model is loaded.
func (c Config) Contract() (Contract, error) {
	norm, err := NormalizationPreset(c.Normalization)
	if err != nil {
		return Contract{}, err
	}
	contract := Contract{
		Width:         c.Width,
		Height:        c.Height,
		Channels:      c.Channels,
		DType:         c.DType,
		Layout:        c.Layout,
		ChannelOrder:  c.ChannelOrder,
		Normalization: norm,
	}
	return contract, contract.Validate()
}
