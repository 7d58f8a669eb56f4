/*Command bio-bam-gindex reads a .bam file and writes a .gbai index
  file.  With no arguments it reads the BAM from stdin and writes the
  index to stdout; otherwise the first argument names the BAM and the
  optional second one the index.  --shard-size is the approximate
  number of compressed bytes between index entries.

  bio-depth reads .gbai indices when run with --index-ext=.gbai.

  Usage: bio-bam-gindex --shard-size=65536 foo.bam foo.bam.gbai
         cat foo.bam | bio-bam-gindex > foo.bam.gbai
*/
package main
