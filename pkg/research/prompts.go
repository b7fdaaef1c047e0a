package research

const systemPromptTemplate = `You are an expert researcher. Today is %s. Follow these instructions when responding:
- You may be asked to research subjects that are after your knowledge cutoff, assume the user is right when presented with news.
- The user is a highly experienced analyst, no need to simplify it, be as detailed as possible and make sure your response is correct.
- Be highly organized.
- Suggest solutions that I didn't think about.
- Be proactive and anticipate my needs.
- Treat me as an expert in all subject matter.
- Mistakes erode my trust, so be accurate and thorough.
- Provide detailed explanations, I'm comfortable with lots of detail.
- Value good arguments over authorities, the source is irrelevant.
- Consider new technologies and contrarian ideas, not just the conventional wisdom.
- You may use high levels of speculation or prediction, just flag it for me.`

const serpPromptTemplate = `Given the following prompt from the user, generate a list of SERP queries to research the topic. Return a maximum of %d queries, but feel free to return less if the original prompt is clear.
Make sure each query is unique and not similar to each other.

User prompt: %s

Here are some learnings from previous research, use them to generate more specific queries:
%s

For every query also write a research goal: first talk about the goal of the research that this query is meant to accomplish, then go deeper into how to advance the research once the results are found, and mention additional research directions. Be as specific as possible, especially for additional research directions.

Answer strictly in this format:
<serp_query>query 1</serp_query><serp_query>query 2</serp_query>...<serp_query>query n</serp_query>
<goal>research goal of query 1</goal><goal>research goal of query 2</goal>...<goal>research goal of query n</goal>

Wrap every query in one <serp_query></serp_query> pair and every research goal in one <goal></goal> pair. The n queries and n goals must correspond one to one.`

const resultPromptTemplate = `Given the following contents from a SERP search for the query <serp_query>%s</serp_query>, generate two lists:
- learnings: useful information extracted from the contents
- follow-up questions: directions the research should take next

Return a maximum of %d learnings, but feel free to return less if the contents are clear. Make sure each learning is unique and not similar to each other. The learnings should be concise and to the point, as detailed and information dense as possible. Make sure to include any entities like people, places, companies, products, things, etc in the learnings, as well as any exact metrics, numbers, or dates.

Return a maximum of %d follow-up questions. They should be meaningful and push the research on this topic further.

Answer strictly in this format:
<learning>learning 1</learning><learning>learning 2</learning>...<learning>learning n</learning>
<follow_Q>follow-up question 1</follow_Q><follow_Q>follow-up question 2</follow_Q>...<follow_Q>follow-up question n</follow_Q>

Contents:
%s`

const reportPromptTemplate = `Given the following research question from the user, write a final report on the topic using the learnings and references from research.
Format the report as Markdown. Make it as detailed as possible and include ALL the learnings.

Research question: %s

Learnings from previous research:
%s

References consulted:
%s

Write the final report on this topic based on the above.`
