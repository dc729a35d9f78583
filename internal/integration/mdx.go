package integration

const markdownContentType = "text/markdown; charset=utf-8"

var mdxNames = []string{"mdx", "@astrojs/mdx"}

// MDXOptions mirrors the options accepted by the MDX integration.
type MDXOptions struct {
	ExtendMarkdownConfig bool `yaml:"extend_markdown_config"`
	GFM                  bool `yaml:"gfm"`
	Smartypants          bool `yaml:"smartypants"`
	Optimize             bool `yaml:"optimize"`
}

// MDX enables MDX content files. Compilation belongs to the build pipeline;
// on the dev server it only makes sure sources are served as markdown.
type MDX struct {
	options MDXOptions
}

// DefaultMDXOptions returns the options used when a declaration sets none.
func DefaultMDXOptions() MDXOptions {
	return MDXOptions{
		ExtendMarkdownConfig: true,
		GFM:                  true,
		Smartypants:          true,
	}
}

// NewMDX is the Factory registered for "mdx" and "@astrojs/mdx".
func NewMDX(options map[string]any) (Integration, error) {
	opts := DefaultMDXOptions()
	if err := DecodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return &MDX{options: opts}, nil
}

// Name implements Integration.
func (m *MDX) Name() string {
	return "@astrojs/mdx"
}

// Options returns the effective options.
func (m *MDX) Options() MDXOptions {
	return m.options
}

// ConfigureServer implements ServerHook.
func (m *MDX) ConfigureServer(setup *ServerSetup) error {
	for _, ext := range []string{".mdx", ".md"} {
		if err := setup.AddContentType(ext, markdownContentType); err != nil {
			return err
		}
	}
	return nil
}
