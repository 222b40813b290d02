package bytesize

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

var _ = Describe("bytesize package", func() {
	Describe("Parse", func() {
		It("works with valid values", func() {
			Expect(Parse("1TB")).To(Equal(1 * TB))
			Expect(Parse("1 TB")).To(Equal(1 * TB))
			Expect(Parse(" 1 TB ")).To(Equal(1 * TB))
			Expect(Parse("  1  TB  ")).To(Equal(1 * TB))

			Expect(Parse("1.0TB")).To(BeNumerically("~", 1*TB, GB))
			Expect(Parse("1.9TB")).To(BeNumerically("~", 1*TB+921*GB, GB))

			Expect(Parse("1")).To(Equal(1 * Byte))
			Expect(Parse(" 1 ")).To(Equal(1 * Byte))

			Expect(Parse("1mb")).To(Equal(1 * MB))
			Expect(Parse("1mB")).To(Equal(1 * MB))
			Expect(Parse("256MiB")).To(Equal(256 * MB))
		})
		It("returns error with invalid values", func() {
			_, err := Parse("1UB")
			Expect(err).To(MatchError("could not parse ByteSize"))
		})
	})

	Describe("String", func() {
		It("prints binary units", func() {
			Expect((512 * MB).String()).To(Equal("512 MB"))
			Expect((3 * Byte).String()).To(Equal("3 B"))
		})
	})

	Describe("YAML", func() {
		It("round trips", func() {
			var v struct {
				Limit ByteSize `yaml:"limit"`
			}
			Expect(yaml.Unmarshal([]byte("limit: 2GB"), &v)).To(Succeed())
			Expect(v.Limit).To(Equal(2 * GB))

			out, err := yaml.Marshal(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal("limit: 2.0 GB\n"))
		})
	})
})
